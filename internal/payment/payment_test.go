package payment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRef(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	assert.Equal(t, "EGREED-EG-IoT-2026-001-1700000000123", transactionRef("EGREED", "EG-IoT-2026-001", now))
	assert.Equal(t, "MOMO-1700000000123", transactionRef("MOMO", "", now))
}

func TestRegistryResolvesByName(t *testing.T) {
	momo := NewMomo(NewStubGateway(), "RWF", zerolog.Nop())
	registry := NewRegistry(momo)

	p, err := registry.Get(" MoMo ")
	require.NoError(t, err)
	assert.Equal(t, ProviderMomo, p.Name())

	_, err = registry.Get("paypal")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Equal(t, []string{ProviderMomo}, registry.Names())
}

// assertSingleShape checks that exactly one of the normalized result shapes is populated.
func assertSingleShape(t *testing.T, res *InitiationResult) {
	t.Helper()
	populated := 0
	if res.RedirectURL != "" {
		populated++
		assert.Equal(t, ResultRedirect, res.Kind)
	}
	if res.ContinuationToken != "" {
		populated++
		assert.Equal(t, ResultContinuation, res.Kind)
	}
	if res.PendingMessage != "" {
		populated++
		assert.Equal(t, ResultPending, res.Kind)
	}
	assert.Equal(t, 1, populated)
	assert.NotEmpty(t, res.TransactionRef)
}

func TestValidateRequestRejectsNonPositiveAmount(t *testing.T) {
	momo := NewMomo(NewStubGateway(), "RWF", zerolog.Nop())
	_, err := momo.Initiate(context.Background(), Request{Amount: 0, ContractRef: "EG-IoT-2026-001", Carrier: "mtn", PayerPhone: "+250788000000"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
