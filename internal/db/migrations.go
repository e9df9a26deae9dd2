package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM (
				'DRAFT', 'PENDING_CLIENT', 'PENDING_DEVELOPER', 'PARTIALLY_SIGNED',
				'FULLY_SIGNED', 'PENDING_PAYMENT', 'COMPLETED', 'EXPIRED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'PARTIAL', 'PAID', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS clients (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		full_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32),
		company VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_clients_email ON clients (LOWER(email));`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_ref VARCHAR(64) NOT NULL,
		ref_year INT NOT NULL,
		ref_seq INT NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		start_date TIMESTAMPTZ,
		end_date TIMESTAMPTZ,
		developer_id UUID NOT NULL,
		client_id UUID NOT NULL REFERENCES clients(id),
		client_signature TEXT,
		client_signed_at TIMESTAMPTZ,
		developer_signature TEXT,
		developer_signed_at TIMESTAMPTZ,
		signed_at TIMESTAMPTZ,
		status contract_status NOT NULL DEFAULT 'DRAFT',
		payment_status payment_status NOT NULL DEFAULT 'PENDING',
		payment_method VARCHAR(32),
		transaction_id VARCHAR(255),
		payment_date TIMESTAMPTZ,
		version INT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_ref ON contracts (contract_ref);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_ref_seq ON contracts (ref_year, ref_seq);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_client_id ON contracts (client_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE TABLE IF NOT EXISTS contract_access_codes (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		access_code VARCHAR(64) NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_access_codes_contract_code ON contract_access_codes (contract_id, access_code);`,
	`CREATE TABLE IF NOT EXISTS signature_audits (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		client_id UUID REFERENCES clients(id),
		user_id UUID,
		action VARCHAR(64) NOT NULL,
		ip_address VARCHAR(64),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_signature_audits_contract ON signature_audits (contract_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		provider VARCHAR(32) NOT NULL,
		method VARCHAR(32) NOT NULL,
		transaction_ref VARCHAR(255) NOT NULL,
		external_id VARCHAR(255),
		amount NUMERIC(18,2) NOT NULL,
		amount_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL,
		status payment_status NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_transaction_ref ON payments (transaction_ref);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_contract ON payments (contract_id);`,
	`ALTER TABLE payments ADD COLUMN IF NOT EXISTS amount_paid NUMERIC(18,2) NOT NULL DEFAULT 0;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
