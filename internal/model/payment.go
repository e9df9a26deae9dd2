package model

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	ID             uuid.UUID
	ContractID     uuid.UUID
	Provider       string
	Method         PaymentMethod
	TransactionRef string
	ExternalID     *string
	Amount         float64
	AmountPaid     float64
	Currency       string
	Status         PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
