package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/egreed-contracts/internal/model"
)

type failingGateway struct{}

func (failingGateway) RequestToPay(context.Context, CarrierRequest) (*CarrierResponse, error) {
	return nil, errors.New("operator timeout at 10.1.2.3")
}

func (failingGateway) Status(context.Context, string) (*CarrierStatus, error) {
	return nil, errors.New("operator timeout at 10.1.2.3")
}

func TestMomoInitiatePerCarrier(t *testing.T) {
	cases := []struct {
		carrier  string
		prefix   string
		method   model.PaymentMethod
		currency string
		message  string
	}{
		{"mtn", "MOMO-", model.PaymentMethodMTNMomo, "RWF", "Please check your phone"},
		{"airtel", "AIRTEL-", model.PaymentMethodAirtelMoney, "RWF", "Airtel Money payment initiated"},
		{"mpesa", "MPESA-", model.PaymentMethodMpesa, "KES", "M-Pesa STK push sent"},
	}

	for _, tc := range cases {
		m := NewMomo(NewStubGateway(), "rwf", zerolog.Nop())
		res, err := m.Initiate(context.Background(), Request{
			Amount:      500,
			ContractRef: "EG-IoT-2026-001",
			PayerPhone:  "+250788000000",
			Carrier:     tc.carrier,
		})
		require.NoError(t, err, tc.carrier)

		assertSingleShape(t, res)
		assert.Regexp(t, `^`+tc.prefix+`EG-IoT-2026-001-\d+$`, res.TransactionRef)
		assert.Equal(t, tc.method, res.Method)
		assert.Equal(t, tc.currency, res.Currency)
		assert.Contains(t, res.PendingMessage, tc.message)
		assert.Contains(t, res.PendingMessage, "+250788000000")
	}
}

func TestMomoRequiresPhoneAndCarrier(t *testing.T) {
	m := NewMomo(NewStubGateway(), "RWF", zerolog.Nop())

	_, err := m.Initiate(context.Background(), Request{Amount: 500, ContractRef: "EG-IoT-2026-001", Carrier: "mtn"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = m.Initiate(context.Background(), Request{Amount: 500, ContractRef: "EG-IoT-2026-001", PayerPhone: "+250788000000", Carrier: "tigo"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMomoVerifyThroughStub(t *testing.T) {
	m := NewMomo(NewStubGateway(), "RWF", zerolog.Nop())
	res, err := m.Initiate(context.Background(), Request{Amount: 750, ContractRef: "EG-IoT-2026-002", PayerPhone: "+250788000000", Carrier: "mtn"})
	require.NoError(t, err)

	verified, err := m.Verify(context.Background(), res.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, VerificationCompleted, verified.Status)
	assert.Equal(t, 750.0, verified.Amount)
	assert.Equal(t, "RWF", verified.Currency)

	_, err = m.Verify(context.Background(), "MOMO-unknown")
	assert.Equal(t, ErrVerificationFailed, err)
}

func TestMomoGatewayFailureIsGeneric(t *testing.T) {
	m := NewMomo(failingGateway{}, "RWF", zerolog.Nop())

	_, err := m.Initiate(context.Background(), Request{Amount: 500, ContractRef: "EG-IoT-2026-001", PayerPhone: "+250788000000", Carrier: "airtel"})
	assert.Equal(t, ErrProcessingFailed, err)
	assert.NotContains(t, err.Error(), "10.1.2.3")

	_, err = m.Verify(context.Background(), "AIRTEL-1")
	assert.Equal(t, ErrVerificationFailed, err)
}
