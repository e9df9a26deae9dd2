package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/nurpe/egreed-contracts/internal/accesscode"
	"github.com/nurpe/egreed-contracts/internal/config"
)

type ContractEmail struct {
	To          string
	ClientName  string
	ContractRef string
	Title       string
	Amount      float64
	Currency    string
	AccessCode  string
	ExpiresAt   time.Time
	SigningURL  string
	IsReminder  bool
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	sender sender
	from   string
	log    zerolog.Logger
}

func NewMailer(cfg config.MailConfig, log zerolog.Logger) *Mailer {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &Mailer{sender: dialer, from: cfg.From, log: log}
}

func (m *Mailer) SendContractEmail(ctx context.Context, email ContractEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := renderContractEmail(email)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		m.log.Error().Err(err).Str("contract_ref", email.ContractRef).Bool("reminder", email.IsReminder).Msg("send contract email failed")
		return fmt.Errorf("send contract email: %w", err)
	}
	m.log.Info().Str("contract_ref", email.ContractRef).Bool("reminder", email.IsReminder).Msg("contract email sent")
	return nil
}

var contractTemplate = template.Must(template.New("contract").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <p>Dear {{.ClientName}},</p>
  {{if .IsReminder}}<p>This is a reminder that contract <strong>{{.ContractRef}}</strong> is still waiting for your signature.</p>
  {{else}}<p>A new contract <strong>{{.ContractRef}}</strong> has been prepared for you.</p>{{end}}
  <p>{{.Title}}<br>Amount: <strong>{{.Amount}} {{.Currency}}</strong></p>
  <p>Your access code: <strong style="font-size: 18px; letter-spacing: 2px;">{{.Code}}</strong><br>
  The code is valid until {{.Expires}}.</p>
  {{if .SigningURL}}<p><a href="{{.SigningURL}}">Review and sign the contract</a></p>{{end}}
  <p>Egreed Technology</p>
</body>
</html>`))

func renderContractEmail(email ContractEmail) (string, string, error) {
	subject := fmt.Sprintf("Contract %s ready for signature", email.ContractRef)
	if email.IsReminder {
		subject = fmt.Sprintf("Reminder: contract %s awaits your signature", email.ContractRef)
	}

	data := struct {
		ContractEmail
		Amount  string
		Code    string
		Expires string
	}{
		ContractEmail: email,
		Amount:        fmt.Sprintf("%.2f", email.Amount),
		Code:          accesscode.Format(email.AccessCode),
		Expires:       email.ExpiresAt.UTC().Format("02 Jan 2006 15:04 MST"),
	}

	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render contract email: %w", err)
	}
	return subject, buf.String(), nil
}
