package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
)

func testManager() *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-that-is-long-enough-for-hs256",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 12 * time.Hour,
		Issuer:          "carelink-test",
	})
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := testManager()
	patientID := uuid.New()
	claims := &domain.Claims{UserID: uuid.New(), Email: "a@carelink.be", Role: domain.RolePatient, PatientID: &patientID}

	pair, err := m.GenerateTokenPair(claims)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	access, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, access.UserID)
	assert.Equal(t, domain.RolePatient, access.Role)
	assert.Equal(t, patientID, *access.PatientID)
	assert.NotEmpty(t, access.TokenID)

	refresh, exp, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, refresh.UserID)
	assert.WithinDuration(t, pair.RefreshExpiresAt, exp, time.Second)
}

func TestTokenTypeMismatch(t *testing.T) {
	m := testManager()
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleCoordinator})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, _, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestExpiredToken(t *testing.T) {
	m := testManager()
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleProvider})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTamperedToken(t *testing.T) {
	m := testManager()
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleProvider})
	require.NoError(t, err)

	other := NewJWTManager(config.JWTConfig{Secret: "another-secret-another-secret-xx", Issuer: "carelink-test", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	_, err = other.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		strength Strength
	}{
		{"too short", "Ab1!", false, StrengthMedium},
		{"no special", "Abcdefg1", false, StrengthMedium},
		{"no upper", "abcdefg1!", false, StrengthMedium},
		{"minimal valid", "Abcdef1!", true, StrengthStrong},
		{"long valid", "Abcdefghij1!", true, StrengthStrong},
		{"very long valid", "Abcdefghijklmno1!", true, StrengthVeryStrong},
		{"lowercase only", "abc", false, StrengthWeak},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := CheckPassword(tc.password)
			assert.Equal(t, tc.valid, r.Valid, r.Failures)
			assert.Equal(t, tc.strength, r.Strength)
		})
	}
}

func TestCheckPasswordAcceptsEverySpecial(t *testing.T) {
	for _, r := range PasswordSpecials {
		report := CheckPassword("Abcdef1" + string(r))
		assert.True(t, report.Valid, "special %q", r)
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "Secret1!"))
	assert.False(t, ComparePassword(hash, "secret1!"))
}
