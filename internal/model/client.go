package model

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Phone     *string
	Company   *string
	CreatedAt time.Time
}
