package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, full_name, email, phone, company, created_at
		FROM clients
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&client).Error; err != nil {
		return nil, err
	}
	if client.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &client, nil
}

func (r *ClientRepository) Create(ctx context.Context, client model.Client) (*model.Client, error) {
	var saved model.Client
	if err := r.db.WithContext(ctx).Raw(`
		INSERT INTO clients (id, full_name, email, phone, company)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, full_name, email, phone, company, created_at
	`, client.ID, client.FullName, client.Email, client.Phone, client.Company).Scan(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}
