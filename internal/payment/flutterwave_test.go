package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/egreed-contracts/internal/config"
)

func newTestFlutterwave(t *testing.T, handler http.HandlerFunc) *Flutterwave {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewFlutterwave(config.FlutterwaveConfig{
		BaseURL:     server.URL,
		SecretKey:   "FLWSECK_TEST",
		RedirectURL: "https://app.example/payments/done",
		WebhookHash: "hash-123",
	}, "Egreed Technology", 5*time.Second, zerolog.Nop())
}

func TestFlutterwaveInitiateReturnsRedirect(t *testing.T) {
	var got flutterwavePaymentRequest
	f := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/pay/abc"}}`))
	})

	res, err := f.Initiate(context.Background(), Request{
		Amount:      500,
		ContractRef: "EG-IoT-2026-001",
		PayerEmail:  "client@example.com",
		PayerName:   "Jane Client",
		PayerPhone:  "+250788000000",
	})
	require.NoError(t, err)

	assertSingleShape(t, res)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/abc", res.RedirectURL)
	assert.Equal(t, got.TxRef, res.TransactionRef)
	assert.True(t, strings.HasPrefix(got.TxRef, "EGREED-EG-IoT-2026-001-"))
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "https://app.example/payments/done", got.RedirectURL)
	assert.Equal(t, "+250788000000", got.Customer.PhoneNumber)
	assert.Equal(t, "EG-IoT-2026-001", got.Meta["contract_ref"])
}

func TestFlutterwaveInitiateHidesProviderError(t *testing.T) {
	f := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"Invalid secret key passed"}`))
	})

	res, err := f.Initiate(context.Background(), Request{Amount: 500, ContractRef: "EG-IoT-2026-001", PayerEmail: "client@example.com"})
	assert.Nil(t, res)
	assert.Equal(t, ErrProcessingFailed, err)
	assert.NotContains(t, err.Error(), "secret key")
}

func TestFlutterwaveInitiateTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	f := NewFlutterwave(config.FlutterwaveConfig{BaseURL: server.URL, SecretKey: "k"}, "Egreed", time.Second, zerolog.Nop())

	_, err := f.Initiate(context.Background(), Request{Amount: 500, ContractRef: "EG-IoT-2026-001", PayerEmail: "client@example.com"})
	assert.Equal(t, ErrProcessingFailed, err)
}

func TestFlutterwaveVerify(t *testing.T) {
	f := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactions/285959875/verify", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","message":"Transaction fetched successfully","data":{"id":285959875,"tx_ref":"EGREED-EG-IoT-2026-001-1","amount":500,"currency":"usd","status":"successful"}}`))
	})

	res, err := f.Verify(context.Background(), "285959875")
	require.NoError(t, err)
	assert.Equal(t, VerificationCompleted, res.Status)
	assert.Equal(t, 500.0, res.Amount)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "285959875", res.ExternalTransactionID)
	assert.Equal(t, "EGREED-EG-IoT-2026-001-1", res.TransactionRef)
}

func TestFlutterwaveVerifyFailure(t *testing.T) {
	f := newTestFlutterwave(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
	})

	_, err := f.Verify(context.Background(), "1")
	assert.Equal(t, ErrVerificationFailed, err)
}

func TestFlutterwaveParseWebhook(t *testing.T) {
	f := newTestFlutterwave(t, func(http.ResponseWriter, *http.Request) {})
	body := []byte(`{"event":"charge.completed","data":{"id":285959875,"tx_ref":"EGREED-EG-IoT-2026-001-1","status":"successful"}}`)

	headers := http.Header{}
	headers.Set("verif-hash", "hash-123")
	ref, err := f.ParseWebhook(headers, body)
	require.NoError(t, err)
	assert.Equal(t, "285959875", ref)

	headers.Set("verif-hash", "nope")
	_, err = f.ParseWebhook(headers, body)
	assert.ErrorIs(t, err, ErrInvalidWebhook)

	headers.Set("verif-hash", "hash-123")
	_, err = f.ParseWebhook(headers, []byte(`{"event":"transfer.completed","data":{"id":1}}`))
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}
