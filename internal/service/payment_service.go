package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/payment"
)

// amountTolerance absorbs float rounding between minor and major units.
const amountTolerance = 0.005

type PaymentStore interface {
	Create(ctx context.Context, payment model.Payment) (*model.Payment, error)
	GetByTransactionRef(ctx context.Context, ref string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus, externalID *string, amountPaid float64) error
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.Payment, error)
	// SumSettled totals what completed attempts in the given currency
	// actually collected for the contract.
	SumSettled(ctx context.Context, contractID uuid.UUID, currency string) (float64, error)
}

type ProviderSource interface {
	Get(name string) (payment.Provider, error)
}

type PaymentService struct {
	contracts *ContractService
	payments  PaymentStore
	providers ProviderSource
	log       zerolog.Logger
}

func NewPaymentService(contracts *ContractService, payments PaymentStore, providers ProviderSource, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		contracts: contracts,
		payments:  payments,
		providers: providers,
		log:       log,
	}
}

type InitiatePaymentInput struct {
	Provider    string
	ContractRef string
	Amount      *float64
	Currency    string
	PayerEmail  string
	PayerName   string
	PayerPhone  string
	Carrier     string
}

func (s *PaymentService) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*payment.InitiationResult, error) {
	provider, err := s.provider(input.Provider)
	if err != nil {
		return nil, err
	}

	contract, err := s.contracts.getByRef(ctx, input.ContractRef)
	if err != nil {
		return nil, err
	}
	if contract.Status == model.ContractStatusExpired {
		return nil, fmt.Errorf("%w: contract is expired", ErrConflict)
	}
	if contract.PaymentStatus == model.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: contract is already paid", ErrConflict)
	}

	var amount float64
	if input.Amount != nil {
		amount = *input.Amount
	} else {
		settled, err := s.payments.SumSettled(ctx, contract.ID, contract.Currency)
		if err != nil {
			return nil, err
		}
		amount = math.Round((contract.Amount-settled)*100) / 100
		if amount <= amountTolerance {
			return nil, fmt.Errorf("%w: nothing outstanding on contract", ErrConflict)
		}
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = contract.Currency
	}

	req := payment.Request{
		Amount:      amount,
		Currency:    currency,
		ContractRef: contract.ContractRef,
		PayerEmail:  strings.TrimSpace(input.PayerEmail),
		PayerName:   strings.TrimSpace(input.PayerName),
		PayerPhone:  strings.TrimSpace(input.PayerPhone),
		Carrier:     input.Carrier,
	}
	if req.PayerEmail == "" || req.PayerName == "" || req.PayerPhone == "" {
		client, err := s.contracts.clients.Get(ctx, contract.ClientID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if client != nil {
			if req.PayerEmail == "" {
				req.PayerEmail = client.Email
			}
			if req.PayerName == "" {
				req.PayerName = client.FullName
			}
			if req.PayerPhone == "" && client.Phone != nil {
				req.PayerPhone = *client.Phone
			}
		}
	}

	result, err := provider.Initiate(ctx, req)
	if err != nil {
		return nil, mapPaymentError(err)
	}

	if _, err := s.payments.Create(ctx, model.Payment{
		ID:             uuid.New(),
		ContractID:     contract.ID,
		Provider:       provider.Name(),
		Method:         result.Method,
		TransactionRef: result.TransactionRef,
		Amount:         result.Amount,
		Currency:       result.Currency,
		Status:         model.PaymentStatusPending,
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("provider", provider.Name()).
		Str("contract_ref", contract.ContractRef).
		Str("transaction_ref", result.TransactionRef).
		Msg("payment initiated")

	return result, nil
}

type VerifyPaymentResult struct {
	Payment  *model.Payment
	Contract *model.Contract
	Status   payment.VerificationStatus
}

// VerifyPayment asks the provider for the outcome of an attempt and records
// it. A completed attempt marks the contract PAID once the attempts settled
// so far cover the contract amount, PARTIAL otherwise. A contract already
// PAID is never downgraded.
func (s *PaymentService) VerifyPayment(ctx context.Context, providerName, transactionRef string) (*VerifyPaymentResult, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, fmt.Errorf("%w: transaction reference is required", ErrInvalidInput)
	}

	res, err := provider.Verify(ctx, transactionRef)
	if err != nil {
		return nil, mapPaymentError(err)
	}

	attempt, err := s.findAttempt(ctx, res.TransactionRef, transactionRef)
	if err != nil {
		return nil, err
	}

	contract, err := s.contracts.contracts.GetByID(ctx, attempt.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract", ErrNotFound)
		}
		return nil, err
	}

	status, paid := settledStatus(res, attempt)
	var externalID *string
	if res.ExternalTransactionID != "" {
		id := res.ExternalTransactionID
		externalID = &id
	}
	if err := s.payments.UpdateStatus(ctx, attempt.ID, status, externalID, paid); err != nil {
		return nil, err
	}
	attempt.Status = status
	attempt.AmountPaid = paid
	if externalID != nil {
		attempt.ExternalID = externalID
	}

	if res.Status == payment.VerificationCompleted && contract.PaymentStatus != model.PaymentStatusPaid {
		contractStatus, err := s.contractPaymentStatus(ctx, contract, attempt, res)
		if err != nil {
			return nil, err
		}
		txID := attempt.TransactionRef
		if externalID != nil {
			txID = *externalID
		}
		method := attempt.Method
		if err := s.contracts.applyPayment(ctx, contract, contractStatus, &txID, &method); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("provider", provider.Name()).
		Str("contract_ref", contract.ContractRef).
		Str("transaction_ref", attempt.TransactionRef).
		Str("status", string(status)).
		Msg("payment verified")

	return &VerifyPaymentResult{Payment: attempt, Contract: contract, Status: res.Status}, nil
}

type WebhookResult struct {
	Ignored bool
	Verify  *VerifyPaymentResult
}

func (s *PaymentService) HandleWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) (*WebhookResult, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	parser, ok := provider.(payment.WebhookParser)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not send webhooks", ErrNotFound, provider.Name())
	}

	ref, err := parser.ParseWebhook(headers, body)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrIgnoredEvent):
			return &WebhookResult{Ignored: true}, nil
		case errors.Is(err, payment.ErrInvalidWebhook):
			return nil, fmt.Errorf("%w: webhook signature", ErrUnauthorized)
		default:
			return nil, err
		}
	}

	verified, err := s.VerifyPayment(ctx, provider.Name(), ref)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Verify: verified}, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, ref string, principal model.Principal) ([]model.Payment, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.contracts.getByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.payments.ListByContract(ctx, contract.ID)
}

func (s *PaymentService) provider(name string) (payment.Provider, error) {
	provider, err := s.providers.Get(name)
	if err != nil {
		return nil, mapPaymentError(err)
	}
	return provider, nil
}

func (s *PaymentService) findAttempt(ctx context.Context, refs ...string) (*model.Payment, error) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		attempt, err := s.payments.GetByTransactionRef(ctx, ref)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: payment", ErrNotFound)
}

// settledStatus grades a single attempt against the amount it asked for and
// returns what it collected.
func settledStatus(res *payment.VerificationResult, attempt *model.Payment) (model.PaymentStatus, float64) {
	switch res.Status {
	case payment.VerificationFailed:
		return model.PaymentStatusFailed, 0
	case payment.VerificationPending:
		return model.PaymentStatusPending, 0
	}

	paid := res.Amount
	if paid <= 0 {
		paid = attempt.Amount
	}
	if paid+amountTolerance < attempt.Amount {
		return model.PaymentStatusPartial, paid
	}
	return model.PaymentStatusPaid, paid
}

// contractPaymentStatus compares everything settled in the contract currency
// with the contract amount. An attempt in another currency cannot be added
// up and counts on its own grade.
func (s *PaymentService) contractPaymentStatus(ctx context.Context, contract *model.Contract, attempt *model.Payment, res *payment.VerificationResult) (model.PaymentStatus, error) {
	currency := res.Currency
	if currency == "" {
		currency = attempt.Currency
	}
	if !strings.EqualFold(currency, contract.Currency) {
		return attempt.Status, nil
	}
	total, err := s.payments.SumSettled(ctx, contract.ID, contract.Currency)
	if err != nil {
		return "", err
	}
	if total+amountTolerance < contract.Amount {
		return model.PaymentStatusPartial, nil
	}
	return model.PaymentStatusPaid, nil
}

// mapPaymentError keeps the adapter sentinels so the handler can answer
// 502, and turns request problems into validation errors.
func mapPaymentError(err error) error {
	switch {
	case errors.Is(err, payment.ErrUnknownProvider):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, payment.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return err
	}
}
