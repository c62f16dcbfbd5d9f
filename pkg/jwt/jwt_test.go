package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "messenger"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateAccessToken(userID, "alice", testSecret, testIssuer, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, testSecret, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "alice", testSecret, testIssuer, time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret", testIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "alice", testSecret, "someone-else", time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret, testIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "alice", testSecret, testIssuer, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret, testIssuer)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken("not-a-token", testSecret, testIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateRefreshToken(userID, testSecret, testIssuer, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateRefreshToken(token, testSecret, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	userID := uuid.New()

	// Два токена, выпущенные в одну секунду, обязаны различаться:
	// ротация опирается на то, что новый токен не совпадает с отзываемым
	first, err := GenerateRefreshToken(userID, testSecret, testIssuer, time.Hour)
	require.NoError(t, err)
	second, err := GenerateRefreshToken(userID, testSecret, testIssuer, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	firstClaims, err := ValidateRefreshToken(first, testSecret, testIssuer)
	require.NoError(t, err)
	secondClaims, err := ValidateRefreshToken(second, testSecret, testIssuer)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestRefreshTokenExpired(t *testing.T) {
	token, err := GenerateRefreshToken(uuid.New(), testSecret, testIssuer, -time.Hour)
	require.NoError(t, err)

	_, err = ValidateRefreshToken(token, testSecret, testIssuer)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
