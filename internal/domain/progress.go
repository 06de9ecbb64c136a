package domain

import "time"

// Progress is the saved playground state of one learner for one lesson or project.
type Progress struct {
	UserID    string      `json:"-"`
	Kind      ContentKind `json:"kind"`
	Slug      string      `json:"slug"`
	HTML      string      `json:"html"`
	CSS       string      `json:"css"`
	Completed []string    `json:"completed_challenges"`
	Manual    []string    `json:"manual_completed_challenges"`
	UpdatedAt time.Time   `json:"updated_at"`
}
