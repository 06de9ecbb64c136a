// Package domain contains core domain types for the CodeAndo playground.
package domain

import (
	"time"
)

// User is an anonymous learner identified by a device cookie.
type User struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	TeacherMode bool      `json:"teacher_mode"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IdleFor returns how long the user has been inactive, never negative.
func (u *User) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(u.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}
