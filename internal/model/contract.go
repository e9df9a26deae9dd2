package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusDraft            ContractStatus = "DRAFT"
	ContractStatusPendingClient    ContractStatus = "PENDING_CLIENT"
	ContractStatusPendingDeveloper ContractStatus = "PENDING_DEVELOPER"
	ContractStatusPartiallySigned  ContractStatus = "PARTIALLY_SIGNED"
	ContractStatusFullySigned      ContractStatus = "FULLY_SIGNED"
	ContractStatusPendingPayment   ContractStatus = "PENDING_PAYMENT"
	ContractStatusCompleted        ContractStatus = "COMPLETED"
	ContractStatusExpired          ContractStatus = "EXPIRED"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusPendingClient, ContractStatusPendingDeveloper,
		ContractStatusPartiallySigned, ContractStatusFullySigned, ContractStatusPendingPayment,
		ContractStatusCompleted, ContractStatusExpired:
		return true
	}
	return false
}

// PreSignature reports whether the contract is not yet fully signed, which
// is where expiry is allowed.
func (s ContractStatus) PreSignature() bool {
	switch s {
	case ContractStatusDraft, ContractStatusPendingClient, ContractStatusPendingDeveloper, ContractStatusPartiallySigned:
		return true
	}
	return false
}

// Closed statuses accept no further signatures.
func (s ContractStatus) Closed() bool {
	return s == ContractStatusCompleted || s == ContractStatusExpired
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodStripe       PaymentMethod = "STRIPE"
	PaymentMethodFlutterwave  PaymentMethod = "FLUTTERWAVE"
	PaymentMethodMTNMomo      PaymentMethod = "MTN_MOMO"
	PaymentMethodAirtelMoney  PaymentMethod = "AIRTEL_MONEY"
	PaymentMethodMpesa        PaymentMethod = "MPESA"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodFlutterwave, PaymentMethodMTNMomo,
		PaymentMethodAirtelMoney, PaymentMethodMpesa, PaymentMethodBankTransfer:
		return true
	}
	return false
}

type Contract struct {
	ID                 uuid.UUID
	ContractRef        string
	RefYear            int
	RefSeq             int
	Title              string
	Description        *string
	Amount             float64
	Currency           string
	StartDate          *time.Time
	EndDate            *time.Time
	DeveloperID        uuid.UUID
	ClientID           uuid.UUID
	ClientSignature    *string
	ClientSignedAt     *time.Time
	DeveloperSignature *string
	DeveloperSignedAt  *time.Time
	SignedAt           *time.Time
	Status             ContractStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      *PaymentMethod
	TransactionID      *string
	PaymentDate        *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Client             *Client `gorm:"-"`
}

func (c *Contract) ClientSigned() bool {
	return c.ClientSignedAt != nil
}

func (c *Contract) DeveloperSigned() bool {
	return c.DeveloperSignedAt != nil
}

type ContractFilter struct {
	Status        *ContractStatus
	PaymentStatus *PaymentStatus
	ClientID      *uuid.UUID
}

type SignatureStatus struct {
	ClientSigned    bool           `json:"client_signed"`
	DeveloperSigned bool           `json:"developer_signed"`
	FullySigned     bool           `json:"fully_signed"`
	PaymentComplete bool           `json:"payment_complete"`
	Status          ContractStatus `json:"status"`
}
