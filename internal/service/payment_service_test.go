package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/payment"
)

type fakeProvider struct {
	// refs hands out one transaction ref per initiation; tx-1 when empty.
	refs       []string
	initiated  []payment.Request
	verify     *payment.VerificationResult
	verifyErr  error
	webhookRef string
	webhookErr error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Initiate(_ context.Context, req payment.Request) (*payment.InitiationResult, error) {
	p.initiated = append(p.initiated, req)
	ref := "tx-1"
	if n := len(p.initiated); n <= len(p.refs) {
		ref = p.refs[n-1]
	}
	return &payment.InitiationResult{
		Kind:              payment.ResultContinuation,
		ContinuationToken: "secret_1",
		TransactionRef:    ref,
		Method:            model.PaymentMethodStripe,
		Amount:            req.Amount,
		Currency:          req.Currency,
	}, nil
}

func (p *fakeProvider) Verify(_ context.Context, _ string) (*payment.VerificationResult, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.verify, nil
}

func (p *fakeProvider) ParseWebhook(_ http.Header, _ []byte) (string, error) {
	return p.webhookRef, p.webhookErr
}

func newPaymentFixture(t *testing.T) (*fixture, *fakeProvider, *PaymentService) {
	t.Helper()
	f := newFixture(t)
	provider := &fakeProvider{}
	svc := NewPaymentService(f.svc, f.store.Payments, payment.NewRegistry(provider), zerolog.Nop())
	return f, provider, svc
}

func TestInitiatePaymentDefaultsFromContract(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	result, err := svc.InitiatePayment(ctx, InitiatePaymentInput{
		Provider:    "FAKE",
		ContractRef: created.Contract.ContractRef,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.ResultContinuation, result.Kind)
	assert.Equal(t, "secret_1", result.ContinuationToken)

	require.Len(t, provider.initiated, 1)
	req := provider.initiated[0]
	assert.Equal(t, 1500.0, req.Amount)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "alice@example.com", req.PayerEmail)
	assert.Equal(t, "Alice Uwase", req.PayerName)

	attempts, err := svc.ListPayments(ctx, created.Contract.ContractRef, f.dev)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "tx-1", attempts[0].TransactionRef)
	assert.Equal(t, model.PaymentStatusPending, attempts[0].Status)
	assert.Equal(t, "fake", attempts[0].Provider)
}

func TestInitiatePaymentRejections(t *testing.T) {
	f, _, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "paypal", ContractRef: created.Contract.ContractRef})
	assert.ErrorIs(t, err, ErrNotFound)

	negative := -5.0
	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef, Amount: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: "EG-IoT-2026-404"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.ExpireContract(ctx, created.Contract.ContractRef, f.dev)
	require.NoError(t, err)
	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestVerifyPaymentMarksContractPaid(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	require.NoError(t, err)

	provider.verify = &payment.VerificationResult{
		Status:                payment.VerificationCompleted,
		Amount:                1500,
		Currency:              "USD",
		ExternalTransactionID: "ch_99",
		TransactionRef:        "tx-1",
	}
	result, err := svc.VerifyPayment(ctx, "fake", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, payment.VerificationCompleted, result.Status)
	assert.Equal(t, model.PaymentStatusPaid, result.Payment.Status)

	stored, err := f.store.Contracts.GetByID(ctx, created.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, model.ContractStatusDraft, stored.Status)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "ch_99", *stored.TransactionID)
	require.NotNil(t, stored.PaymentMethod)
	assert.Equal(t, model.PaymentMethodStripe, *stored.PaymentMethod)
	require.NotNil(t, stored.PaymentDate)

	// A repeated verification leaves the paid contract alone.
	again, err := svc.VerifyPayment(ctx, "fake", "ch_99")
	require.NoError(t, err)
	assert.Equal(t, stored.Version, again.Contract.Version)
}

func TestInstallmentsAddUpToPaid(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	provider.refs = []string{"tx-1", "tx-2"}
	created := f.create(t)
	ref := created.Contract.ContractRef
	ctx := context.Background()

	first := 1000.0
	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: ref, Amount: &first})
	require.NoError(t, err)
	provider.verify = &payment.VerificationResult{Status: payment.VerificationCompleted, Amount: 1000, Currency: "USD", TransactionRef: "tx-1"}
	result, err := svc.VerifyPayment(ctx, "fake", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, result.Payment.Status)
	assert.Equal(t, model.PaymentStatusPartial, result.Contract.PaymentStatus)

	// Without an explicit amount only the outstanding balance is requested.
	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: ref})
	require.NoError(t, err)
	require.Len(t, provider.initiated, 2)
	assert.Equal(t, 500.0, provider.initiated[1].Amount)

	provider.verify = &payment.VerificationResult{Status: payment.VerificationCompleted, Amount: 500, Currency: "USD", TransactionRef: "tx-2"}
	result, err = svc.VerifyPayment(ctx, "fake", "tx-2")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, result.Contract.PaymentStatus)
	require.NotNil(t, result.Contract.PaymentDate)

	stored, err := f.store.Contracts.GetByID(ctx, created.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)

	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: ref})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInitiatePaymentWithNothingOutstandingIsConflict(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	require.NoError(t, err)
	_, err = f.store.Payments.Create(ctx, model.Payment{
		ID:             uuid.New(),
		ContractID:     created.Contract.ID,
		Provider:       "fake",
		Method:         model.PaymentMethodBankTransfer,
		TransactionRef: "manual-1",
		Amount:         1500,
		AmountPaid:     1500,
		Currency:       "USD",
		Status:         model.PaymentStatusPaid,
	})
	require.NoError(t, err)

	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, provider.initiated, 1)
}

func TestVerifyPaymentShortAmountIsPartial(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	require.NoError(t, err)

	provider.verify = &payment.VerificationResult{
		Status:         payment.VerificationCompleted,
		Amount:         500,
		Currency:       "USD",
		TransactionRef: "tx-1",
	}
	result, err := svc.VerifyPayment(ctx, "fake", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPartial, result.Payment.Status)
	assert.Equal(t, model.PaymentStatusPartial, result.Contract.PaymentStatus)
	assert.Nil(t, result.Contract.PaymentDate)
}

func TestVerifyPaymentFailureLeavesContract(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	require.NoError(t, err)

	provider.verify = &payment.VerificationResult{Status: payment.VerificationFailed, TransactionRef: "tx-1"}
	result, err := svc.VerifyPayment(ctx, "fake", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, result.Payment.Status)

	stored, err := f.store.Contracts.GetByID(ctx, created.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, created.Contract.Version, stored.Version)
}

func TestVerifyPaymentErrors(t *testing.T) {
	_, provider, svc := newPaymentFixture(t)
	ctx := context.Background()

	provider.verifyErr = payment.ErrVerificationFailed
	_, err := svc.VerifyPayment(ctx, "fake", "tx-1")
	assert.ErrorIs(t, err, payment.ErrVerificationFailed)

	provider.verifyErr = nil
	provider.verify = &payment.VerificationResult{Status: payment.VerificationCompleted, TransactionRef: "unknown"}
	_, err = svc.VerifyPayment(ctx, "fake", "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.VerifyPayment(ctx, "fake", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHandleWebhook(t *testing.T) {
	f, provider, svc := newPaymentFixture(t)
	created := f.create(t)
	ctx := context.Background()

	provider.webhookErr = payment.ErrInvalidWebhook
	_, err := svc.HandleWebhook(ctx, "fake", http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnauthorized)

	provider.webhookErr = payment.ErrIgnoredEvent
	result, err := svc.HandleWebhook(ctx, "fake", http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, result.Ignored)

	_, err = svc.InitiatePayment(ctx, InitiatePaymentInput{Provider: "fake", ContractRef: created.Contract.ContractRef})
	require.NoError(t, err)
	provider.webhookErr = nil
	provider.webhookRef = "tx-1"
	provider.verify = &payment.VerificationResult{Status: payment.VerificationCompleted, Amount: 1500, Currency: "USD", TransactionRef: "tx-1"}

	result, err = svc.HandleWebhook(ctx, "fake", http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, result.Verify)
	assert.Equal(t, model.PaymentStatusPaid, result.Verify.Contract.PaymentStatus)
}
