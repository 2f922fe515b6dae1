package roles

import "time"

// Role represents one of the fixed permission tiers.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
