package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/egreed-contracts/internal/model"
)

func TestParserRoundTrip(t *testing.T) {
	parser := NewParser("test-secret")
	orgID := uuid.New()
	principal := model.Principal{UserID: uuid.New(), OrgID: &orgID, Role: model.RoleDeveloper}

	token, err := parser.Issue(principal, time.Hour)
	require.NoError(t, err)

	got, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, got.UserID)
	assert.Equal(t, model.RoleDeveloper, got.Role)
	require.NotNil(t, got.OrgID)
	assert.Equal(t, orgID, *got.OrgID)
}

func TestParserRejectsExpiredToken(t *testing.T) {
	parser := NewParser("test-secret")
	token, err := parser.Issue(model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	_, err = parser.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParserRejectsForeignSecret(t *testing.T) {
	token, err := NewParser("other").Issue(model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = NewParser("test-secret").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParserRejectsNonUUIDSubject(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: model.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewParser("test-secret").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
