// Package memstore keeps contracts, access codes, audit entries and payments
// in memory with the same semantics as the Postgres repositories.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/repository"
)

type Store struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]model.Contract
	clients   map[uuid.UUID]model.Client
	codes     []model.AccessCode
	audits    []model.SignatureAudit
	payments  map[uuid.UUID]model.Payment

	// FailAudit makes every audited update fail, as a broken audit insert
	// would inside the transaction.
	FailAudit bool

	Contracts   *Contracts
	Clients     *Clients
	AccessCodes *AccessCodes
	Audits      *Audits
	Payments    *Payments
}

func New() *Store {
	s := &Store{
		contracts: make(map[uuid.UUID]model.Contract),
		clients:   make(map[uuid.UUID]model.Client),
		payments:  make(map[uuid.UUID]model.Payment),
	}
	s.Contracts = &Contracts{s: s}
	s.Clients = &Clients{s: s}
	s.AccessCodes = &AccessCodes{s: s}
	s.Audits = &Audits{s: s}
	s.Payments = &Payments{s: s}
	return s
}

var errAuditWrite = errors.New("audit insert failed")

type Contracts struct{ s *Store }

func (c *Contracts) GetByRef(_ context.Context, ref string) (*model.Contract, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, contract := range c.s.contracts {
		if contract.ContractRef == ref {
			cp := contract
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *Contracts) GetByID(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	contract, ok := c.s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (c *Contracts) List(_ context.Context, filter model.ContractFilter) ([]model.Contract, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	result := make([]model.Contract, 0, len(c.s.contracts))
	for _, contract := range c.s.contracts {
		if filter.Status != nil && contract.Status != *filter.Status {
			continue
		}
		if filter.PaymentStatus != nil && contract.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		if filter.ClientID != nil && contract.ClientID != *filter.ClientID {
			continue
		}
		result = append(result, contract)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RefSeq > result[j].RefSeq
	})
	return result, nil
}

func (c *Contracts) Create(
	_ context.Context,
	contract model.Contract,
	code model.AccessCode,
	refFor func(seq int) string,
	beforeCommit func(*model.Contract) error,
) (*model.Contract, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	seq := 1
	for _, existing := range c.s.contracts {
		if existing.RefYear == contract.RefYear && existing.RefSeq >= seq {
			seq = existing.RefSeq + 1
		}
	}
	now := time.Now().UTC()
	contract.RefSeq = seq
	contract.ContractRef = refFor(seq)
	contract.Version = 1
	contract.CreatedAt = now
	contract.UpdatedAt = now
	code.ContractID = contract.ID

	if beforeCommit != nil {
		saved := contract
		if err := beforeCommit(&saved); err != nil {
			return nil, err
		}
	}

	c.s.contracts[contract.ID] = contract
	c.s.codes = append(c.s.codes, code)
	return &contract, nil
}

func (c *Contracts) Update(_ context.Context, contract *model.Contract, audit *model.SignatureAudit) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	stored, ok := c.s.contracts[contract.ID]
	if !ok || stored.Version != contract.Version {
		return repository.ErrVersionConflict
	}
	if audit != nil && c.s.FailAudit {
		return errAuditWrite
	}

	contract.Version++
	contract.UpdatedAt = time.Now().UTC()
	updated := *contract
	updated.Client = nil
	c.s.contracts[contract.ID] = updated
	if audit != nil {
		entry := *audit
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		c.s.audits = append(c.s.audits, entry)
	}
	return nil
}

type Clients struct{ s *Store }

func (c *Clients) Get(_ context.Context, id uuid.UUID) (*model.Client, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	client, ok := c.s.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &client, nil
}

func (c *Clients) Create(_ context.Context, client model.Client) (*model.Client, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	client.CreatedAt = time.Now().UTC()
	c.s.clients[client.ID] = client
	return &client, nil
}

type AccessCodes struct{ s *Store }

func (a *AccessCodes) Create(_ context.Context, code model.AccessCode) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.codes = append(a.s.codes, code)
	return nil
}

func (a *AccessCodes) FindValid(_ context.Context, contractID uuid.UUID, code string, now time.Time) (*model.AccessCode, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, c := range a.s.codes {
		if c.ContractID == contractID && c.AccessCode == code && c.ValidAt(now) {
			found := c
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (a *AccessCodes) LatestValid(_ context.Context, contractID uuid.UUID, now time.Time) (*model.AccessCode, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var latest *model.AccessCode
	for i := range a.s.codes {
		c := a.s.codes[i]
		if c.ContractID != contractID || !c.ValidAt(now) {
			continue
		}
		if latest == nil || c.ExpiresAt.After(latest.ExpiresAt) {
			found := c
			latest = &found
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

// ForContract returns every code issued for the contract, newest last.
func (a *AccessCodes) ForContract(contractID uuid.UUID) []model.AccessCode {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var result []model.AccessCode
	for _, c := range a.s.codes {
		if c.ContractID == contractID {
			result = append(result, c)
		}
	}
	return result
}

// Expire moves every code of the contract into the past.
func (a *AccessCodes) Expire(contractID uuid.UUID, at time.Time) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for i := range a.s.codes {
		if a.s.codes[i].ContractID == contractID {
			a.s.codes[i].ExpiresAt = at
		}
	}
}

type Audits struct{ s *Store }

func (a *Audits) Record(_ context.Context, entry model.SignatureAudit) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	a.s.audits = append(a.s.audits, entry)
	return nil
}

func (a *Audits) ListByContract(_ context.Context, contractID uuid.UUID) ([]model.SignatureAudit, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var result []model.SignatureAudit
	for _, entry := range a.s.audits {
		if entry.ContractID == contractID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type Payments struct{ s *Store }

func (p *Payments) Create(_ context.Context, payment model.Payment) (*model.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, existing := range p.s.payments {
		if existing.TransactionRef == payment.TransactionRef {
			return nil, errors.New("duplicate transaction_ref")
		}
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	p.s.payments[payment.ID] = payment
	return &payment, nil
}

func (p *Payments) GetByTransactionRef(_ context.Context, ref string) (*model.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, payment := range p.s.payments {
		if payment.TransactionRef == ref || (payment.ExternalID != nil && *payment.ExternalID == ref) {
			found := payment
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (p *Payments) UpdateStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus, externalID *string, amountPaid float64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	payment.Status = status
	payment.AmountPaid = amountPaid
	if externalID != nil {
		payment.ExternalID = externalID
	}
	payment.UpdatedAt = time.Now().UTC()
	p.s.payments[id] = payment
	return nil
}

func (p *Payments) SumSettled(_ context.Context, contractID uuid.UUID, currency string) (float64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var total float64
	for _, payment := range p.s.payments {
		if payment.ContractID != contractID || !strings.EqualFold(payment.Currency, currency) {
			continue
		}
		if payment.Status == model.PaymentStatusPaid || payment.Status == model.PaymentStatusPartial {
			total += payment.AmountPaid
		}
	}
	return total, nil
}

func (p *Payments) ListByContract(_ context.Context, contractID uuid.UUID) ([]model.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var result []model.Payment
	for _, payment := range p.s.payments {
		if payment.ContractID == contractID {
			result = append(result, payment)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
