package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/accesscode"
	"github.com/nurpe/egreed-contracts/internal/config"
	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/notify"
	"github.com/nurpe/egreed-contracts/internal/repository"
)

const maxSignatureLength = 512 * 1024

type ContractStore interface {
	GetByRef(ctx context.Context, ref string) (*model.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	List(ctx context.Context, filter model.ContractFilter) ([]model.Contract, error)
	Create(ctx context.Context, contract model.Contract, code model.AccessCode, refFor func(seq int) string, beforeCommit func(*model.Contract) error) (*model.Contract, error)
	Update(ctx context.Context, contract *model.Contract, audit *model.SignatureAudit) error
}

type ClientStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Client, error)
	Create(ctx context.Context, client model.Client) (*model.Client, error)
}

type AccessCodeStore interface {
	Create(ctx context.Context, code model.AccessCode) error
	FindValid(ctx context.Context, contractID uuid.UUID, code string, now time.Time) (*model.AccessCode, error)
	LatestValid(ctx context.Context, contractID uuid.UUID, now time.Time) (*model.AccessCode, error)
}

type AuditStore interface {
	Record(ctx context.Context, entry model.SignatureAudit) error
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.SignatureAudit, error)
}

type CodeIssuer interface {
	Issue(contractID uuid.UUID) (model.AccessCode, error)
}

type Notifier interface {
	SendContractEmail(ctx context.Context, email notify.ContractEmail) error
}

type ContractService struct {
	contracts       ContractStore
	clients         ClientStore
	codes           AccessCodeStore
	audits          AuditStore
	issuer          CodeIssuer
	notifier        Notifier
	refSegment      string
	defaultCurrency string
	signingBaseURL  string
	now             func() time.Time
}

func NewContractService(
	contracts ContractStore,
	clients ClientStore,
	codes AccessCodeStore,
	audits AuditStore,
	issuer CodeIssuer,
	notifier Notifier,
	cfg *config.Config,
) *ContractService {
	return &ContractService{
		contracts:       contracts,
		clients:         clients,
		codes:           codes,
		audits:          audits,
		issuer:          issuer,
		notifier:        notifier,
		refSegment:      cfg.Contracts.RefSegment,
		defaultCurrency: cfg.Contracts.DefaultCurrency,
		signingBaseURL:  strings.TrimRight(cfg.Contracts.SigningBaseURL, "/"),
		now:             time.Now,
	}
}

// FormatContractRef renders EG-<segment>-<year>-<sequence>, sequence zero padded to three digits.
func FormatContractRef(segment string, year, seq int) string {
	return fmt.Sprintf("EG-%s-%d-%03d", segment, year, seq)
}

type CreateContractInput struct {
	ClientID    uuid.UUID
	Title       string
	Description *string
	Amount      float64
	Currency    string
	StartDate   *time.Time
	EndDate     *time.Time
	Principal   model.Principal
}

type CreateContractResult struct {
	Contract   *model.Contract
	AccessCode model.AccessCode
}

func (s *ContractService) CreateContract(ctx context.Context, input CreateContractInput) (*CreateContractResult, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Amount <= 0 || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency, err := s.normalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, fmt.Errorf("%w: end_date must not be before start_date", ErrInvalidInput)
	}
	if input.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}

	client, err := s.clients.Get(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: client", ErrNotFound)
		}
		return nil, err
	}

	now := s.now().UTC()
	contract := model.Contract{
		ID:            uuid.New(),
		RefYear:       now.Year(),
		Title:         title,
		Description:   input.Description,
		Amount:        input.Amount,
		Currency:      currency,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		DeveloperID:   input.Principal.UserID,
		ClientID:      client.ID,
		Status:        model.ContractStatusDraft,
		PaymentStatus: model.PaymentStatusPending,
	}

	code, err := s.issuer.Issue(contract.ID)
	if err != nil {
		return nil, err
	}

	saved, err := s.contracts.Create(ctx, contract, code,
		func(seq int) string {
			return FormatContractRef(s.refSegment, contract.RefYear, seq)
		},
		func(saved *model.Contract) error {
			return s.notifier.SendContractEmail(ctx, s.contractEmail(saved, client, code, false))
		},
	)
	if err != nil {
		return nil, err
	}
	saved.Client = client
	code.ContractID = saved.ID

	return &CreateContractResult{Contract: saved, AccessCode: code}, nil
}

type SignAsClientInput struct {
	ContractRef string
	Signature   string
	AccessCode  string
	IPAddress   string
	UserAgent   string
}

func (s *ContractService) SignAsClient(ctx context.Context, input SignAsClientInput) (*model.Contract, error) {
	if err := validateSignature(input.Signature); err != nil {
		return nil, err
	}
	code := accesscode.Normalize(input.AccessCode)
	if code == "" {
		return nil, ErrUnauthorized
	}

	// An unknown reference is reported like a bad code so refs cannot be probed.
	contract, err := s.contracts.GetByRef(ctx, strings.TrimSpace(input.ContractRef))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	now := s.now().UTC()
	access, err := s.codes.FindValid(ctx, contract.ID, code, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if contract.Status.Closed() {
		return nil, fmt.Errorf("%w: contract is %s", ErrConflict, contract.Status)
	}
	if contract.ClientSigned() {
		return nil, ErrAlreadySigned
	}

	signature := input.Signature
	contract.ClientSignature = &signature
	contract.ClientSignedAt = &now
	if contract.DeveloperSigned() {
		contract.Status = model.ContractStatusFullySigned
		contract.SignedAt = &now
	} else {
		contract.Status = model.ContractStatusPendingDeveloper
	}

	clientID := contract.ClientID
	audit := newAuditEntry(contract.ID, model.AuditActionSignedClient, input.IPAddress, now, datatypes.JSONMap{
		"access_code_id": access.ID.String(),
		"user_agent":     input.UserAgent,
	})
	audit.ClientID = &clientID

	if err := s.update(ctx, contract, &audit); err != nil {
		return nil, err
	}
	return contract, nil
}

type SignAsDeveloperInput struct {
	ContractRef string
	Signature   string
	Principal   model.Principal
	IPAddress   string
	UserAgent   string
}

// SignAsDeveloper countersigns without requiring the client signature
// first; the contract is fully signed from here on.
func (s *ContractService) SignAsDeveloper(ctx context.Context, input SignAsDeveloperInput) (*model.Contract, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	if err := validateSignature(input.Signature); err != nil {
		return nil, err
	}

	contract, err := s.getByRef(ctx, input.ContractRef)
	if err != nil {
		return nil, err
	}
	if contract.Status.Closed() {
		return nil, fmt.Errorf("%w: contract is %s", ErrConflict, contract.Status)
	}

	now := s.now().UTC()
	signature := input.Signature
	contract.DeveloperSignature = &signature
	contract.DeveloperSignedAt = &now
	contract.SignedAt = &now
	contract.DeveloperID = input.Principal.UserID
	contract.Status = model.ContractStatusFullySigned

	userID := input.Principal.UserID
	audit := newAuditEntry(contract.ID, model.AuditActionSignedDeveloper, input.IPAddress, now, datatypes.JSONMap{
		"user_agent": input.UserAgent,
		"role":       input.Principal.Role,
	})
	audit.UserID = &userID

	if err := s.update(ctx, contract, &audit); err != nil {
		return nil, err
	}
	return contract, nil
}

type UpdatePaymentStatusInput struct {
	ContractRef   string
	Status        model.PaymentStatus
	TransactionID *string
	Method        *model.PaymentMethod
	Principal     model.Principal
}

func (s *ContractService) UpdatePaymentStatus(ctx context.Context, input UpdatePaymentStatusInput) (*model.Contract, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	switch input.Status {
	case model.PaymentStatusPaid, model.PaymentStatusPartial, model.PaymentStatusPending:
	default:
		return nil, fmt.Errorf("%w: payment status must be PAID, PARTIAL or PENDING", ErrInvalidInput)
	}
	if input.Method != nil && !input.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method", ErrInvalidInput)
	}

	contract, err := s.getByRef(ctx, input.ContractRef)
	if err != nil {
		return nil, err
	}
	if err := s.applyPayment(ctx, contract, input.Status, input.TransactionID, input.Method); err != nil {
		return nil, err
	}
	return contract, nil
}

// applyPayment overwrites the payment fields. It never touches the
// lifecycle status; completion is a separate, explicit step.
func (s *ContractService) applyPayment(
	ctx context.Context,
	contract *model.Contract,
	status model.PaymentStatus,
	transactionID *string,
	method *model.PaymentMethod,
) error {
	contract.PaymentStatus = status
	if transactionID != nil {
		contract.TransactionID = transactionID
	}
	if method != nil {
		contract.PaymentMethod = method
	}
	if status == model.PaymentStatusPaid {
		now := s.now().UTC()
		contract.PaymentDate = &now
	}
	return s.update(ctx, contract, nil)
}

func (s *ContractService) GetSignatureStatus(ctx context.Context, ref string) (*model.SignatureStatus, error) {
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &model.SignatureStatus{
		ClientSigned:    contract.ClientSigned(),
		DeveloperSigned: contract.DeveloperSigned(),
		FullySigned:     contract.Status == model.ContractStatusFullySigned || contract.Status == model.ContractStatusCompleted,
		PaymentComplete: contract.PaymentStatus == model.PaymentStatusPaid,
		Status:          contract.Status,
	}, nil
}

type ReminderResult struct {
	ExpiresAt time.Time
	Reissued  bool
}

// SendReminder emails the newest unexpired access code again, issuing a new
// one when every earlier code has lapsed. No contract field changes.
func (s *ContractService) SendReminder(ctx context.Context, ref string, principal model.Principal) (*ReminderResult, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if contract.Status.Closed() {
		return nil, fmt.Errorf("%w: contract is %s", ErrConflict, contract.Status)
	}
	client, err := s.clients.Get(ctx, contract.ClientID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	reissued := false
	code, err := s.codes.LatestValid(ctx, contract.ID, now)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		issued, err := s.issuer.Issue(contract.ID)
		if err != nil {
			return nil, err
		}
		if err := s.codes.Create(ctx, issued); err != nil {
			return nil, err
		}
		code = &issued
		reissued = true
	}

	if err := s.notifier.SendContractEmail(ctx, s.contractEmail(contract, client, *code, true)); err != nil {
		return nil, err
	}

	userID := principal.UserID
	entry := newAuditEntry(contract.ID, model.AuditActionReminderSent, "", now, datatypes.JSONMap{
		"access_code_id": code.ID.String(),
		"reissued":       reissued,
	})
	entry.UserID = &userID
	if err := s.audits.Record(ctx, entry); err != nil {
		return nil, err
	}
	return &ReminderResult{ExpiresAt: code.ExpiresAt, Reissued: reissued}, nil
}

func (s *ContractService) CompleteContract(ctx context.Context, ref string, principal model.Principal) (*model.Contract, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if contract.Status != model.ContractStatusFullySigned {
		return nil, fmt.Errorf("%w: only fully signed contracts can be completed", ErrConflict)
	}
	if contract.PaymentStatus != model.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: contract is not paid", ErrConflict)
	}
	contract.Status = model.ContractStatusCompleted
	if err := s.update(ctx, contract, nil); err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) ExpireContract(ctx context.Context, ref string, principal model.Principal) (*model.Contract, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !contract.Status.PreSignature() || contract.DeveloperSigned() {
		return nil, fmt.Errorf("%w: contract is %s", ErrConflict, contract.Status)
	}
	contract.Status = model.ContractStatusExpired
	if err := s.update(ctx, contract, nil); err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) GetContract(ctx context.Context, ref string) (*model.Contract, error) {
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.Get(ctx, contract.ClientID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	contract.Client = client
	return contract, nil
}

func (s *ContractService) ListContracts(ctx context.Context, filter model.ContractFilter, principal model.Principal) ([]model.Contract, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	return s.contracts.List(ctx, filter)
}

func (s *ContractService) ListAudit(ctx context.Context, ref string, principal model.Principal) ([]model.SignatureAudit, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.audits.ListByContract(ctx, contract.ID)
}

type CreateClientInput struct {
	FullName  string
	Email     string
	Phone     *string
	Company   *string
	Principal model.Principal
}

func (s *ContractService) CreateClient(ctx context.Context, input CreateClientInput) (*model.Client, error) {
	if !input.Principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return s.clients.Create(ctx, model.Client{
		ID:       uuid.New(),
		FullName: name,
		Email:    strings.ToLower(email),
		Phone:    input.Phone,
		Company:  input.Company,
	})
}

func (s *ContractService) getByRef(ctx context.Context, ref string) (*model.Contract, error) {
	contract, err := s.contracts.GetByRef(ctx, strings.TrimSpace(ref))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract", ErrNotFound)
		}
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) update(ctx context.Context, contract *model.Contract, audit *model.SignatureAudit) error {
	if err := s.contracts.Update(ctx, contract, audit); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("%w: contract was modified concurrently, reload and retry", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *ContractService) normalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be a three letter code", ErrInvalidInput)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency must be a three letter code", ErrInvalidInput)
		}
	}
	return currency, nil
}

func (s *ContractService) contractEmail(contract *model.Contract, client *model.Client, code model.AccessCode, reminder bool) notify.ContractEmail {
	signingURL := ""
	if s.signingBaseURL != "" {
		signingURL = s.signingBaseURL + "/" + contract.ContractRef
	}
	return notify.ContractEmail{
		To:          client.Email,
		ClientName:  client.FullName,
		ContractRef: contract.ContractRef,
		Title:       contract.Title,
		Amount:      contract.Amount,
		Currency:    contract.Currency,
		AccessCode:  code.AccessCode,
		ExpiresAt:   code.ExpiresAt,
		SigningURL:  signingURL,
		IsReminder:  reminder,
	}
}

func validateSignature(signature string) error {
	if strings.TrimSpace(signature) == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidInput)
	}
	if len(signature) > maxSignatureLength {
		return fmt.Errorf("%w: signature is too large", ErrInvalidInput)
	}
	return nil
}

func newAuditEntry(contractID uuid.UUID, action, ip string, at time.Time, metadata datatypes.JSONMap) model.SignatureAudit {
	entry := model.SignatureAudit{
		ID:         uuid.New(),
		ContractID: contractID,
		Action:     action,
		Metadata:   metadata,
		CreatedAt:  at,
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	return entry
}
