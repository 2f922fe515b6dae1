package accounts

import (
	"time"

	"github.com/google/uuid"
)

// User represents a managed user account. Roles carries the current role
// memberships when the record was loaded; authorization decisions must use
// memberships re-read at request time, never a stale copy.
type User struct {
	ID           uuid.UUID
	Username     string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Name joins first and last name for display.
func (u User) Name() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Timestamps are stored at minute resolution, mirroring the account pages
// which never display seconds.
func minuteNow() time.Time {
	return time.Now().UTC().Truncate(time.Minute)
}
