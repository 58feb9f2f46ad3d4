package guidance

import (
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/assessment"
	"github.com/kassandra-app/kassandra/internal/identity"
)

type Guidance struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Text        string    `json:"text"`
	IsDaily     bool      `json:"is_daily"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Profile is the slice of the user handed to the generator.
type Profile struct {
	ID          uuid.UUID      `json:"id"`
	DisplayName string         `json:"display_name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Kind        identity.Kind  `json:"kind"`
	Traits      map[string]int `json:"traits"`
}

// Context aggregates everything a generator may draw on: the user profile,
// the ordered answer list, and recent guidance texts so the generator can
// avoid repeating itself.
type Context struct {
	Profile Profile                       `json:"profile"`
	Answers []assessment.AnsweredQuestion `json:"answers"`
	History []string                      `json:"history"`
}

// BuildProfile derives the trait tallies from choice metadata.
func BuildProfile(user *identity.User, answers []assessment.AnsweredQuestion) Profile {
	traits := make(map[string]int)
	for _, a := range answers {
		if a.Metadata != "" {
			traits[a.Metadata]++
		}
	}
	return Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Kind:        user.Kind,
		Traits:      traits,
	}
}
