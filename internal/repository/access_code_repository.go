package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

type AccessCodeRepository struct {
	db *gorm.DB
}

func NewAccessCodeRepository(db *gorm.DB) *AccessCodeRepository {
	return &AccessCodeRepository{db: db}
}

func (r *AccessCodeRepository) Create(ctx context.Context, code model.AccessCode) error {
	return insertAccessCode(r.db.WithContext(ctx), code)
}

// FindValid matches on contract, code and expiry; how many codes the
// contract has does not matter.
func (r *AccessCodeRepository) FindValid(ctx context.Context, contractID uuid.UUID, code string, now time.Time) (*model.AccessCode, error) {
	var found model.AccessCode
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, access_code, expires_at, created_at
		FROM contract_access_codes
		WHERE contract_id = ? AND access_code = ? AND expires_at > ?
		LIMIT 1
	`, contractID, code, now).Scan(&found).Error; err != nil {
		return nil, err
	}
	if found.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &found, nil
}

func (r *AccessCodeRepository) LatestValid(ctx context.Context, contractID uuid.UUID, now time.Time) (*model.AccessCode, error) {
	var found model.AccessCode
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, access_code, expires_at, created_at
		FROM contract_access_codes
		WHERE contract_id = ? AND expires_at > ?
		ORDER BY expires_at DESC
		LIMIT 1
	`, contractID, now).Scan(&found).Error; err != nil {
		return nil, err
	}
	if found.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &found, nil
}

func insertAccessCode(tx *gorm.DB, code model.AccessCode) error {
	return tx.Exec(`
		INSERT INTO contract_access_codes (id, contract_id, access_code, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, code.ID, code.ContractID, code.AccessCode, code.ExpiresAt, code.CreatedAt).Error
}
