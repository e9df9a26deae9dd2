package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/egreed-contracts/internal/model"
)

type Carrier string

const (
	CarrierMTN    Carrier = "mtn"
	CarrierAirtel Carrier = "airtel"
	CarrierMpesa  Carrier = "mpesa"
)

func ParseCarrier(raw string) (Carrier, error) {
	switch c := Carrier(strings.ToLower(strings.TrimSpace(raw))); c {
	case CarrierMTN, CarrierAirtel, CarrierMpesa:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown mobile money carrier %q", ErrInvalidRequest, raw)
}

func (c Carrier) method() model.PaymentMethod {
	switch c {
	case CarrierAirtel:
		return model.PaymentMethodAirtelMoney
	case CarrierMpesa:
		return model.PaymentMethodMpesa
	default:
		return model.PaymentMethodMTNMomo
	}
}

func (c Carrier) prefix() string {
	switch c {
	case CarrierAirtel:
		return "AIRTEL"
	case CarrierMpesa:
		return "MPESA"
	default:
		return "MOMO"
	}
}

type CarrierRequest struct {
	Carrier     Carrier
	Phone       string
	Amount      float64
	Currency    string
	ContractRef string
}

type CarrierResponse struct {
	TransactionID string
	Message       string
}

type CarrierStatus struct {
	Status   VerificationStatus
	Amount   float64
	Currency string
}

// CarrierGateway is the network boundary to the mobile money operators.
// StubGateway stands in until the operator APIs are integrated.
type CarrierGateway interface {
	RequestToPay(ctx context.Context, req CarrierRequest) (*CarrierResponse, error)
	Status(ctx context.Context, transactionID string) (*CarrierStatus, error)
}

type Momo struct {
	gateway         CarrierGateway
	defaultCurrency string
	log             zerolog.Logger
}

func NewMomo(gateway CarrierGateway, defaultCurrency string, log zerolog.Logger) *Momo {
	return &Momo{
		gateway:         gateway,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		log:             log.With().Str("provider", ProviderMomo).Logger(),
	}
}

func (m *Momo) Name() string {
	return ProviderMomo
}

func (m *Momo) Initiate(ctx context.Context, req Request) (*InitiationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	carrier, err := ParseCarrier(req.Carrier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PayerPhone) == "" {
		return nil, fmt.Errorf("%w: phone is required for mobile money", ErrInvalidRequest)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = m.defaultCurrency
	}
	if carrier == CarrierMpesa {
		currency = "KES"
	}

	resp, err := m.gateway.RequestToPay(ctx, CarrierRequest{
		Carrier:     carrier,
		Phone:       req.PayerPhone,
		Amount:      req.Amount,
		Currency:    currency,
		ContractRef: req.ContractRef,
	})
	if err != nil {
		m.log.Error().Err(err).Str("carrier", string(carrier)).Str("contract_ref", req.ContractRef).Msg("request to pay failed")
		return nil, ErrProcessingFailed
	}

	return &InitiationResult{
		Kind:           ResultPending,
		PendingMessage: resp.Message,
		TransactionRef: resp.TransactionID,
		Method:         carrier.method(),
		Amount:         req.Amount,
		Currency:       currency,
	}, nil
}

func (m *Momo) Verify(ctx context.Context, transactionRef string) (*VerificationResult, error) {
	status, err := m.gateway.Status(ctx, transactionRef)
	if err != nil {
		m.log.Error().Err(err).Str("transaction_ref", transactionRef).Msg("mobile money status failed")
		return nil, ErrVerificationFailed
	}
	return &VerificationResult{
		Status:                status.Status,
		Amount:                status.Amount,
		Currency:              status.Currency,
		ExternalTransactionID: transactionRef,
		TransactionRef:        transactionRef,
	}, nil
}

var errUnknownTransaction = errors.New("unknown mobile money transaction")

// StubGateway accepts every request to pay and reports it completed on the
// next status check. It remembers what it accepted so verification can echo
// the amount back.
type StubGateway struct {
	mu      sync.Mutex
	pending map[string]CarrierStatus
	now     func() time.Time
}

func NewStubGateway() *StubGateway {
	return &StubGateway{pending: make(map[string]CarrierStatus), now: time.Now}
}

func (g *StubGateway) RequestToPay(_ context.Context, req CarrierRequest) (*CarrierResponse, error) {
	id := transactionRef(req.Carrier.prefix(), req.ContractRef, g.now())

	var message string
	switch req.Carrier {
	case CarrierAirtel:
		message = fmt.Sprintf("Airtel Money payment initiated for %s", req.Phone)
	case CarrierMpesa:
		message = fmt.Sprintf("M-Pesa STK push sent to %s", req.Phone)
	default:
		message = fmt.Sprintf("Payment request sent to %s. Please check your phone to complete transaction.", req.Phone)
	}

	g.mu.Lock()
	g.pending[id] = CarrierStatus{Status: VerificationCompleted, Amount: req.Amount, Currency: req.Currency}
	g.mu.Unlock()

	return &CarrierResponse{TransactionID: id, Message: message}, nil
}

func (g *StubGateway) Status(_ context.Context, transactionID string) (*CarrierStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.pending[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownTransaction, transactionID)
	}
	return &status, nil
}
