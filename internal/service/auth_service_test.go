package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
)

const testPassword = "Secret#2025a"

func newAuthUser(t *testing.T, h *harness) *domain.User {
	t.Helper()
	u, err := h.authSvc.CreateUser(t.Context(), CreateUserCommand{
		Email:     "nora@carelink.test",
		Password:  testPassword,
		FirstName: "Nora",
		LastName:  "Nurse",
		Role:      domain.RoleCoordinator,
	})
	require.NoError(t, err)
	return u
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	u := newAuthUser(t, h)

	res, err := h.authSvc.Login(t.Context(), "Nora@carelink.test ", testPassword, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.authSvc.Login(t.Context(), "ghost@carelink.test", testPassword, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnverifiedEmail(t *testing.T) {
	h := newHarness(t)
	u := newAuthUser(t, h)
	stored, err := h.users.GetByID(t.Context(), u.ID)
	require.NoError(t, err)
	stored.EmailVerified = false
	h.users.Add(stored)

	_, err = h.authSvc.Login(t.Context(), u.Email, testPassword, "")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestLogin_LockoutProgression(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := newAuthUser(t, h)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	h.setNow(now)

	for i := 1; i <= 4; i++ {
		_, err := h.authSvc.Login(ctx, u.Email, "wrong", "")
		var cred *CredentialsError
		require.ErrorAs(t, err, &cred, "attempt %d", i)
		assert.Equal(t, domain.SoftLockThreshold-i, cred.AttemptsRemaining)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := h.authSvc.Login(ctx, u.Email, "wrong", "")
	var lock *LockoutError
	require.ErrorAs(t, err, &lock)
	assert.False(t, lock.Hard)
	assert.Contains(t, lock.Warning, "5 attempts remain")

	// Locked: even the right password is refused.
	h.setNow(now.Add(time.Minute))
	_, err = h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.ErrorAs(t, err, &lock)
	assert.False(t, lock.Hard)
	assert.LessOrEqual(t, lock.Minutes, 15)
	assert.Greater(t, lock.Minutes, 0)

	// Each failure past the threshold re-arms the soft lock until the hard block.
	for i := 6; i <= 9; i++ {
		now = now.Add(16 * time.Minute)
		h.setNow(now)
		_, err = h.authSvc.Login(ctx, u.Email, "wrong", "")
		require.ErrorAs(t, err, &lock, "attempt %d", i)
		assert.False(t, lock.Hard, "attempt %d", i)
	}

	now = now.Add(16 * time.Minute)
	h.setNow(now)
	_, err = h.authSvc.Login(ctx, u.Email, "wrong", "")
	require.ErrorAs(t, err, &lock)
	assert.True(t, lock.Hard)
	assert.Equal(t, "Your account is blocked, contact administrator.", lock.Error())

	stored, err := h.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.True(t, stored.IsHardBlocked())

	// Time alone does not clear a hard block.
	h.setNow(now.Add(24 * time.Hour))
	_, err = h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.ErrorAs(t, err, &lock)
	assert.True(t, lock.Hard)

	_, err = h.authSvc.Unblock(ctx, domain.Actor{UserID: u.ID, Role: domain.RoleCoordinator}, u.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.authSvc.Unblock(ctx, h.admin, u.ID)
	require.NoError(t, err)
	_, err = h.authSvc.Login(ctx, u.Email, testPassword, "")
	assert.NoError(t, err)
}

func TestLogin_SoftLockClearsAtLockedUntil(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := newAuthUser(t, h)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	h.setNow(now)

	for range domain.SoftLockThreshold {
		_, _ = h.authSvc.Login(ctx, u.Email, "wrong", "")
	}
	h.setNow(now.Add(domain.SoftLockDuration))
	_, err := h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.NoError(t, err)

	stored, err := h.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := newAuthUser(t, h)

	for range 4 {
		_, _ = h.authSvc.Login(ctx, u.Email, "wrong", "")
	}
	_, err := h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.NoError(t, err)

	// Four more failures stay below the threshold after the reset.
	for range 4 {
		_, err = h.authSvc.Login(ctx, u.Email, "wrong", "")
		var cred *CredentialsError
		require.ErrorAs(t, err, &cred)
	}
}

func TestRefreshRotatesAndLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := newAuthUser(t, h)

	res, err := h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.NoError(t, err)

	pair, err := h.authSvc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	_, err = h.authSvc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "a rotated token cannot be reused")

	require.NoError(t, h.authSvc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, h.authSvc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, h.authSvc.Logout(ctx, "not-a-token"))
	require.NoError(t, h.authSvc.Logout(ctx, ""))

	_, err = h.authSvc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = h.authSvc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "access tokens are not refresh tokens")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	u := newAuthUser(t, h)
	res, err := h.authSvc.Login(ctx, u.Email, testPassword, "")
	require.NoError(t, err)

	err = h.authSvc.ChangePassword(ctx, u.ID, "nope", "Another#2025b")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	err = h.authSvc.ChangePassword(ctx, u.ID, testPassword, "short")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Fields)

	require.NoError(t, h.authSvc.ChangePassword(ctx, u.ID, testPassword, "Another#2025b"))

	_, err = h.authSvc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "sessions are revoked on password change")

	_, err = h.authSvc.Login(ctx, u.Email, "Another#2025b", "")
	assert.NoError(t, err)
}

func TestCreateUser_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.authSvc.CreateUser(t.Context(), CreateUserCommand{Email: "bad", Password: "x", Role: "Janitor"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Fields), 3)

	newAuthUser(t, h)
	_, err = h.authSvc.CreateUser(t.Context(), CreateUserCommand{
		Email: "NORA@carelink.test", Password: testPassword, FirstName: "N", LastName: "N", Role: domain.RolePatient,
	})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}
