package identity

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a user identity. The anonymous -> registered transition is
// one-way; nothing downgrades a user back to anonymous.
type Kind string

const (
	KindAnonymous  Kind = "anonymous"
	KindRegistered Kind = "registered"
	KindPremium    Kind = "premium"
)

type User struct {
	ID               uuid.UUID  `json:"id"`
	DisplayName      string     `json:"display_name,omitempty"`
	Email            string     `json:"email,omitempty"`
	PasswordHash     string     `json:"-"` // Never expose password hash in JSON
	Kind             Kind       `json:"kind"`
	SubscribedWeekly bool       `json:"subscribed_weekly"`
	CreatedAt        time.Time  `json:"created_at"`
	LastActiveAt     time.Time  `json:"last_active_at"`
	LastGuidanceAt   *time.Time `json:"last_guidance_at,omitempty"`
}

// IsAnonymous reports whether the user has not been upgraded yet.
func (u *User) IsAnonymous() bool {
	return u.Kind == KindAnonymous
}
