package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func sampleEmail() ContractEmail {
	return ContractEmail{
		To:          "client@example.com",
		ClientName:  "Jane <Client>",
		ContractRef: "EG-IoT-2026-001",
		Title:       "Sensor rollout",
		Amount:      500,
		Currency:    "USD",
		AccessCode:  "ABCDEFGHIJKLMNOP",
		ExpiresAt:   time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC),
		SigningURL:  "https://app.example/sign/EG-IoT-2026-001",
	}
}

func TestRenderContractEmail(t *testing.T) {
	subject, body, err := renderContractEmail(sampleEmail())
	require.NoError(t, err)

	assert.Equal(t, "Contract EG-IoT-2026-001 ready for signature", subject)
	assert.Contains(t, body, "ABCD-EFGH-IJKL-MNOP")
	assert.Contains(t, body, "500.00 USD")
	assert.Contains(t, body, "08 Mar 2026")
	assert.Contains(t, body, "Jane &lt;Client&gt;")
	assert.NotContains(t, body, "reminder")
}

func TestRenderReminderEmail(t *testing.T) {
	email := sampleEmail()
	email.IsReminder = true

	subject, body, err := renderContractEmail(email)
	require.NoError(t, err)
	assert.Equal(t, "Reminder: contract EG-IoT-2026-001 awaits your signature", subject)
	assert.Contains(t, body, "reminder")
}

func TestMailerSends(t *testing.T) {
	capture := &captureSender{}
	mailer := &Mailer{sender: capture, from: "contracts@egreedtech.org", log: zerolog.Nop()}

	require.NoError(t, mailer.SendContractEmail(context.Background(), sampleEmail()))
	require.Len(t, capture.messages, 1)
	assert.Equal(t, []string{"client@example.com"}, capture.messages[0].GetHeader("To"))
	assert.Equal(t, []string{"contracts@egreedtech.org"}, capture.messages[0].GetHeader("From"))
}

func TestMailerPropagatesFailure(t *testing.T) {
	capture := &captureSender{err: errors.New("smtp down")}
	mailer := &Mailer{sender: capture, from: "contracts@egreedtech.org", log: zerolog.Nop()}

	err := mailer.SendContractEmail(context.Background(), sampleEmail())
	require.Error(t, err)
}
