package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

const paymentColumns = `id, contract_id, provider, method, transaction_ref, external_id, amount, amount_paid, currency, status, created_at, updated_at`

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment model.Payment) (*model.Payment, error) {
	var saved model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		INSERT INTO payments (id, contract_id, provider, method, transaction_ref, amount, currency, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+paymentColumns,
		payment.ID,
		payment.ContractID,
		payment.Provider,
		payment.Method,
		payment.TransactionRef,
		payment.Amount,
		payment.Currency,
		payment.Status,
	).Scan(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *PaymentRepository) GetByTransactionRef(ctx context.Context, ref string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE transaction_ref = ? OR external_id = ?
		LIMIT 1
	`, ref, ref).Scan(&payment).Error; err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus, externalID *string, amountPaid float64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE payments
		SET status = ?, external_id = COALESCE(?, external_id), amount_paid = ?, updated_at = ?
		WHERE id = ?
	`, status, externalID, amountPaid, time.Now().UTC(), id).Error
}

func (r *PaymentRepository) SumSettled(ctx context.Context, contractID uuid.UUID, currency string) (float64, error) {
	var total float64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount_paid), 0)
		FROM payments
		WHERE contract_id = ? AND currency = ? AND status IN ('PAID', 'PARTIAL')
	`, contractID, currency).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PaymentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE contract_id = ?
		ORDER BY created_at DESC
	`, contractID).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
