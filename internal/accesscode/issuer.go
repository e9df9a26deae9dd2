package accesscode

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/egreed-contracts/internal/model"
)

// TTL is fixed: clients get one week to sign before a reminder must
// reissue a code.
const TTL = 7 * 24 * time.Hour

// 10 bytes gives 80 bits of entropy and a 16 character code.
const codeBytes = 10

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Issuer struct {
	random io.Reader
	now    func() time.Time
}

func NewIssuer() *Issuer {
	return &Issuer{random: rand.Reader, now: time.Now}
}

// NewIssuerWith is used by tests to pin the clock and the entropy source.
func NewIssuerWith(random io.Reader, now func() time.Time) *Issuer {
	return &Issuer{random: random, now: now}
}

func (i *Issuer) Issue(contractID uuid.UUID) (model.AccessCode, error) {
	buf := make([]byte, codeBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return model.AccessCode{}, fmt.Errorf("generate access code: %w", err)
	}
	now := i.now().UTC()
	return model.AccessCode{
		ID:         uuid.New(),
		ContractID: contractID,
		AccessCode: encoding.EncodeToString(buf),
		ExpiresAt:  now.Add(TTL),
		CreatedAt:  now,
	}, nil
}

// Normalize strips the display grouping and case so a code typed by hand
// compares equal to the stored one.
func Normalize(code string) string {
	code = strings.ToUpper(code)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t':
			return -1
		}
		return r
	}, code)
}

// Format groups a stored code as XXXX-XXXX-XXXX-XXXX for emails.
func Format(code string) string {
	code = Normalize(code)
	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
