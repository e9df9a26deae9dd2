package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

// ErrVersionConflict means the contract changed between read and write.
var ErrVersionConflict = errors.New("contract version conflict")

const contractColumns = `
	id,
	contract_ref,
	ref_year,
	ref_seq,
	title,
	description,
	amount,
	currency,
	start_date,
	end_date,
	developer_id,
	client_id,
	client_signature,
	client_signed_at,
	developer_signature,
	developer_signed_at,
	signed_at,
	status,
	payment_status,
	payment_method,
	transaction_id,
	payment_date,
	version,
	created_at,
	updated_at`

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) GetByRef(ctx context.Context, ref string) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM contracts
		WHERE contract_ref = ?
		LIMIT 1
	`, ref).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (r *ContractRepository) List(ctx context.Context, filter model.ContractFilter) ([]model.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts`
	var filters []string
	var args []interface{}
	if filter.Status != nil {
		filters = append(filters, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.PaymentStatus != nil {
		filters = append(filters, "payment_status = ?")
		args = append(args, *filter.PaymentStatus)
	}
	if filter.ClientID != nil {
		filters = append(filters, "client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var contracts []model.Contract
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// Create allocates the next per-year sequence number, inserts the contract
// with its first access code and runs beforeCommit inside the same
// transaction. An error from beforeCommit rolls everything back.
func (r *ContractRepository) Create(
	ctx context.Context,
	contract model.Contract,
	code model.AccessCode,
	refFor func(seq int) string,
	beforeCommit func(*model.Contract) error,
) (*model.Contract, error) {
	var saved model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes sequence allocation per year.
		if err := tx.Exec(`SELECT pg_advisory_xact_lock(?)`, int64(contract.RefYear)).Error; err != nil {
			return err
		}

		var seq int
		if err := tx.Raw(`
			SELECT COALESCE(MAX(ref_seq), 0) + 1 FROM contracts WHERE ref_year = ?
		`, contract.RefYear).Scan(&seq).Error; err != nil {
			return err
		}

		err := tx.Raw(`
			INSERT INTO contracts (
				id,
				contract_ref,
				ref_year,
				ref_seq,
				title,
				description,
				amount,
				currency,
				start_date,
				end_date,
				developer_id,
				client_id,
				status,
				payment_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+contractColumns,
			contract.ID,
			refFor(seq),
			contract.RefYear,
			seq,
			contract.Title,
			contract.Description,
			contract.Amount,
			contract.Currency,
			contract.StartDate,
			contract.EndDate,
			contract.DeveloperID,
			contract.ClientID,
			contract.Status,
			contract.PaymentStatus,
		).Scan(&saved).Error
		if err != nil {
			return err
		}

		code.ContractID = saved.ID
		if err := insertAccessCode(tx, code); err != nil {
			return err
		}

		if beforeCommit != nil {
			return beforeCommit(&saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Update writes the mutable lifecycle and payment fields when the stored
// version still matches contract.Version. A non-nil audit entry is appended
// in the same transaction.
func (r *ContractRepository) Update(ctx context.Context, contract *model.Contract, audit *model.SignatureAudit) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(`
			UPDATE contracts
			SET
				developer_id = ?,
				client_signature = ?,
				client_signed_at = ?,
				developer_signature = ?,
				developer_signed_at = ?,
				signed_at = ?,
				status = ?,
				payment_status = ?,
				payment_method = ?,
				transaction_id = ?,
				payment_date = ?,
				version = version + 1,
				updated_at = ?
			WHERE id = ? AND version = ?
		`,
			contract.DeveloperID,
			contract.ClientSignature,
			contract.ClientSignedAt,
			contract.DeveloperSignature,
			contract.DeveloperSignedAt,
			contract.SignedAt,
			contract.Status,
			contract.PaymentStatus,
			contract.PaymentMethod,
			contract.TransactionID,
			contract.PaymentDate,
			now,
			contract.ID,
			contract.Version,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if audit != nil {
			if err := insertAudit(tx, *audit); err != nil {
				return fmt.Errorf("write audit entry: %w", err)
			}
		}

		contract.Version++
		contract.UpdatedAt = now
		return nil
	})
}
