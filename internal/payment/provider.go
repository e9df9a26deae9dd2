// Package payment adapts the payment networks the platform collects through
// (card processor, regional aggregator, mobile money) to one request and
// result shape.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nurpe/egreed-contracts/internal/model"
)

const (
	ProviderStripe      = "stripe"
	ProviderFlutterwave = "flutterwave"
	ProviderMomo        = "momo"
)

type Request struct {
	Amount      float64
	Currency    string
	ContractRef string
	PayerEmail  string
	PayerName   string
	PayerPhone  string
	// Carrier selects the mobile money network; other providers ignore it.
	Carrier string
}

type ResultKind string

const (
	ResultRedirect     ResultKind = "redirect"
	ResultContinuation ResultKind = "continuation"
	ResultPending      ResultKind = "pending"
)

// InitiationResult carries exactly one of RedirectURL, ContinuationToken or
// PendingMessage, as named by Kind. TransactionRef is always set so the
// attempt can be verified later.
type InitiationResult struct {
	Kind              ResultKind
	RedirectURL       string
	ContinuationToken string
	PendingMessage    string
	TransactionRef    string
	Method            model.PaymentMethod
	Amount            float64
	Currency          string
}

type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationCompleted VerificationStatus = "completed"
	VerificationFailed    VerificationStatus = "failed"
)

type VerificationResult struct {
	Status                VerificationStatus
	Amount                float64
	Currency              string
	ExternalTransactionID string
	// TransactionRef is the platform reference the attempt was created
	// with, when the provider echoes it back.
	TransactionRef string
}

type Provider interface {
	Name() string
	Initiate(ctx context.Context, req Request) (*InitiationResult, error)
	Verify(ctx context.Context, transactionRef string) (*VerificationResult, error)
}

// WebhookParser is implemented by providers that push payment events. It
// checks the signature and returns the reference to verify.
type WebhookParser interface {
	ParseWebhook(headers http.Header, body []byte) (string, error)
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// transactionRef builds <PREFIX>-<contractRef>-<epoch-millis>, or
// <PREFIX>-<epoch-millis> when no contract is known.
func transactionRef(prefix, contractRef string, now time.Time) string {
	if contractRef == "" {
		return fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
	}
	return fmt.Sprintf("%s-%s-%d", prefix, contractRef, now.UnixMilli())
}

func validateRequest(req Request) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.ContractRef) == "" {
		return fmt.Errorf("%w: contract reference is required", ErrInvalidRequest)
	}
	return nil
}
