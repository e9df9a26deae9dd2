package model

import (
	"time"

	"github.com/google/uuid"
)

type AccessCode struct {
	ID         uuid.UUID
	ContractID uuid.UUID
	AccessCode string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// ValidAt reports whether the code can still be used for signing.
func (a AccessCode) ValidAt(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}
