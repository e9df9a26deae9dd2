package accesscode

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestIssueExpiresInSevenDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuerWith(bytes.NewReader(bytes.Repeat([]byte{0xAB}, codeBytes)), func() time.Time { return now })
	contractID := uuid.New()

	code, err := issuer.Issue(contractID)
	require.NoError(t, err)

	assert.Equal(t, contractID, code.ContractID)
	assert.Equal(t, now.Add(7*24*time.Hour), code.ExpiresAt)
	assert.Equal(t, now, code.CreatedAt)
	assert.Len(t, code.AccessCode, 16)
	assert.True(t, code.ValidAt(now.Add(7*24*time.Hour-time.Second)))
	assert.False(t, code.ValidAt(now.Add(7*24*time.Hour)))
}

func TestIssueProducesDistinctCodes(t *testing.T) {
	issuer := NewIssuer()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		code, err := issuer.Issue(uuid.New())
		require.NoError(t, err)
		_, dup := seen[code.AccessCode]
		require.False(t, dup, "duplicate code %s", code.AccessCode)
		seen[code.AccessCode] = struct{}{}
	}
}

func TestIssueFailsWithoutEntropy(t *testing.T) {
	_, err := NewIssuerWith(failingReader{}, time.Now).Issue(uuid.New())
	require.Error(t, err)
}

func TestFormatAndNormalize(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", Format("abcdefghijklmnop"))
	assert.Equal(t, "ABCDEFGHIJKLMNOP", Normalize("abcd-efgh ijkl-mnop"))
	assert.Equal(t, Normalize(Format("QWERTYUIOPASDFGH")), "QWERTYUIOPASDFGH")
}
