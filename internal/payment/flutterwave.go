package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/egreed-contracts/internal/config"
	"github.com/nurpe/egreed-contracts/internal/model"
)

const (
	flutterwaveRefPrefix  = "EGREED"
	flutterwaveHashHeader = "verif-hash"
	maxProviderBody       = 1 << 20
)

type Flutterwave struct {
	baseURL     string
	secretKey   string
	redirectURL string
	webhookHash string
	platform    string
	http        *http.Client
	log         zerolog.Logger
	now         func() time.Time
}

func NewFlutterwave(cfg config.FlutterwaveConfig, platform string, timeout time.Duration, log zerolog.Logger) *Flutterwave {
	return &Flutterwave{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		redirectURL: cfg.RedirectURL,
		webhookHash: cfg.WebhookHash,
		platform:    platform,
		http:        &http.Client{Timeout: timeout},
		log:         log.With().Str("provider", ProviderFlutterwave).Logger(),
		now:         time.Now,
	}
}

func (f *Flutterwave) Name() string {
	return ProviderFlutterwave
}

type flutterwaveCustomer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

type flutterwavePaymentRequest struct {
	TxRef          string              `json:"tx_ref"`
	Amount         float64             `json:"amount"`
	Currency       string              `json:"currency"`
	RedirectURL    string              `json:"redirect_url"`
	Meta           map[string]string   `json:"meta"`
	Customer       flutterwaveCustomer `json:"customer"`
	Customizations map[string]string   `json:"customizations"`
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwaveTransaction struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	FlwRef   string  `json:"flw_ref"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

func (f *Flutterwave) Initiate(ctx context.Context, req Request) (*InitiationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PayerEmail) == "" {
		return nil, fmt.Errorf("%w: payer email is required", ErrInvalidRequest)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	payload := flutterwavePaymentRequest{
		TxRef:       transactionRef(flutterwaveRefPrefix, req.ContractRef, f.now()),
		Amount:      req.Amount,
		Currency:    currency,
		RedirectURL: f.redirectURL,
		Meta: map[string]string{
			"contract_ref": req.ContractRef,
			"platform":     f.platform,
		},
		Customer: flutterwaveCustomer{
			Email:       req.PayerEmail,
			Name:        req.PayerName,
			PhoneNumber: req.PayerPhone,
		},
		Customizations: map[string]string{
			"title":       f.platform,
			"description": "Contract Payment - " + req.ContractRef,
		},
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := f.do(ctx, http.MethodPost, "/payments", payload, &data); err != nil {
		f.log.Error().Err(err).Str("contract_ref", req.ContractRef).Str("tx_ref", payload.TxRef).Msg("create payment link failed")
		return nil, ErrProcessingFailed
	}
	if data.Link == "" {
		f.log.Error().Str("tx_ref", payload.TxRef).Msg("payment link missing in response")
		return nil, ErrProcessingFailed
	}

	return &InitiationResult{
		Kind:           ResultRedirect,
		RedirectURL:    data.Link,
		TransactionRef: payload.TxRef,
		Method:         model.PaymentMethodFlutterwave,
		Amount:         req.Amount,
		Currency:       currency,
	}, nil
}

// Verify takes the Flutterwave transaction id handed back on redirect or in
// the webhook, not the tx_ref.
func (f *Flutterwave) Verify(ctx context.Context, transactionID string) (*VerificationResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrVerificationFailed
	}

	var tx flutterwaveTransaction
	path := "/transactions/" + url.PathEscape(transactionID) + "/verify"
	if err := f.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		f.log.Error().Err(err).Str("transaction_id", transactionID).Msg("verify transaction failed")
		return nil, ErrVerificationFailed
	}

	return &VerificationResult{
		Status:                flutterwaveStatus(tx.Status),
		Amount:                tx.Amount,
		Currency:              strings.ToUpper(tx.Currency),
		ExternalTransactionID: strconv.FormatInt(tx.ID, 10),
		TransactionRef:        tx.TxRef,
	}, nil
}

func (f *Flutterwave) ParseWebhook(headers http.Header, body []byte) (string, error) {
	got := headers.Get(flutterwaveHashHeader)
	if f.webhookHash == "" || subtle.ConstantTimeCompare([]byte(got), []byte(f.webhookHash)) != 1 {
		f.log.Warn().Msg("flutterwave webhook rejected")
		return "", ErrInvalidWebhook
	}

	var event struct {
		Event string                 `json:"event"`
		Data  flutterwaveTransaction `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return "", ErrInvalidWebhook
	}
	if event.Event != "charge.completed" || event.Data.ID == 0 {
		return "", ErrIgnoredEvent
	}
	return strconv.FormatInt(event.Data.ID, 10), nil
}

func (f *Flutterwave) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope flutterwaveEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProviderBody)).Decode(&envelope); err != nil {
		return fmt.Errorf("flutterwave returned %d with unreadable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || envelope.Status != "success" {
		return fmt.Errorf("flutterwave returned %d: %s", resp.StatusCode, envelope.Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode flutterwave data: %w", err)
	}
	return nil
}

func flutterwaveStatus(status string) VerificationStatus {
	switch strings.ToLower(status) {
	case "successful":
		return VerificationCompleted
	case "failed", "cancelled":
		return VerificationFailed
	default:
		return VerificationPending
	}
}
