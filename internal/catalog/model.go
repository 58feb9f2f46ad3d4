// Package catalog exposes the question catalog: an ordered, read-only list
// of questions seeded once and never mutated during a session.
package catalog

type Question struct {
	ID       int64    `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Choices  []Choice `json:"choices"`
}

type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"-"`
	Text       string `json:"text"`
	// Metadata carries trait hints for the guidance generator,
	// e.g. "high_openness".
	Metadata string `json:"metadata,omitempty"`
}
