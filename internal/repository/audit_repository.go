package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

// AuditRepository only appends and reads; audit rows are never updated.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry model.SignatureAudit) error {
	return insertAudit(r.db.WithContext(ctx), entry)
}

func (r *AuditRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.SignatureAudit, error) {
	var entries []model.SignatureAudit
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, client_id, user_id, action, ip_address, metadata, created_at
		FROM signature_audits
		WHERE contract_id = ?
		ORDER BY created_at ASC
	`, contractID).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func insertAudit(tx *gorm.DB, entry model.SignatureAudit) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return tx.Exec(`
		INSERT INTO signature_audits (id, contract_id, client_id, user_id, action, ip_address, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ContractID, entry.ClientID, entry.UserID, entry.Action, entry.IPAddress, entry.Metadata, entry.CreatedAt).Error
}
