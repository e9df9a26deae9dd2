package payment

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/nurpe/egreed-contracts/internal/config"
	"github.com/nurpe/egreed-contracts/internal/model"
)

const stripeRefPrefix = "EGREED"

// intentClient is the slice of the Stripe SDK the adapter uses.
type intentClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type Stripe struct {
	intents       intentClient
	webhookSecret string
	platform      string
	log           zerolog.Logger
	now           func() time.Time
}

func NewStripe(cfg config.StripeConfig, platform string, log zerolog.Logger) *Stripe {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripe(sc.PaymentIntents, cfg.WebhookSecret, platform, log)
}

func newStripe(intents intentClient, webhookSecret, platform string, log zerolog.Logger) *Stripe {
	return &Stripe{
		intents:       intents,
		webhookSecret: webhookSecret,
		platform:      platform,
		log:           log.With().Str("provider", ProviderStripe).Logger(),
		now:           time.Now,
	}
}

func (s *Stripe) Name() string {
	return ProviderStripe
}

func (s *Stripe) Initiate(ctx context.Context, req Request) (*InitiationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	params.AddMetadata("contract_ref", req.ContractRef)
	params.AddMetadata("client_email", req.PayerEmail)
	params.AddMetadata("platform", s.platform)
	params.AddMetadata("platform_ref", transactionRef(stripeRefPrefix, req.ContractRef, s.now()))
	if req.PayerEmail != "" {
		params.ReceiptEmail = stripe.String(req.PayerEmail)
	}

	intent, err := s.intents.New(params)
	if err != nil {
		s.log.Error().Err(err).Str("contract_ref", req.ContractRef).Msg("create payment intent failed")
		return nil, ErrProcessingFailed
	}
	if intent.ClientSecret == "" || intent.ID == "" {
		s.log.Error().Str("contract_ref", req.ContractRef).Msg("payment intent without client secret")
		return nil, ErrProcessingFailed
	}

	return &InitiationResult{
		Kind:              ResultContinuation,
		ContinuationToken: intent.ClientSecret,
		TransactionRef:    intent.ID,
		Method:            model.PaymentMethodStripe,
		Amount:            req.Amount,
		Currency:          strings.ToUpper(currency),
	}, nil
}

func (s *Stripe) Verify(ctx context.Context, transactionRef string) (*VerificationResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := s.intents.Get(transactionRef, params)
	if err != nil {
		s.log.Error().Err(err).Str("transaction_ref", transactionRef).Msg("retrieve payment intent failed")
		return nil, ErrVerificationFailed
	}

	return &VerificationResult{
		Status:                stripeStatus(intent),
		Amount:                fromMinorUnits(intent.Amount),
		Currency:              strings.ToUpper(string(intent.Currency)),
		ExternalTransactionID: intent.ID,
		TransactionRef:        intent.ID,
	}, nil
}

func (s *Stripe) ParseWebhook(headers http.Header, body []byte) (string, error) {
	event, err := webhook.ConstructEventWithOptions(body, headers.Get("Stripe-Signature"), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.log.Warn().Err(err).Msg("stripe webhook rejected")
		return "", ErrInvalidWebhook
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		return "", ErrIgnoredEvent
	}
	if event.Data == nil {
		return "", ErrIgnoredEvent
	}
	id, _ := event.Data.Object["id"].(string)
	if id == "" {
		return "", ErrIgnoredEvent
	}
	return id, nil
}

// A fresh intent also sits in requires_payment_method, so that status only
// counts as failed once an attempt has been declined.
func stripeStatus(intent *stripe.PaymentIntent) VerificationStatus {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return VerificationCompleted
	case stripe.PaymentIntentStatusCanceled:
		return VerificationFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return VerificationFailed
		}
		return VerificationPending
	default:
		return VerificationPending
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}
