package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AuditActionSignedClient    = "signed_client"
	AuditActionSignedDeveloper = "signed_developer"
	AuditActionReminderSent    = "reminder_sent"
)

type SignatureAudit struct {
	ID         uuid.UUID
	ContractID uuid.UUID
	ClientID   *uuid.UUID
	UserID     *uuid.UUID
	Action     string
	IPAddress  *string
	Metadata   datatypes.JSONMap
	CreatedAt  time.Time
}
