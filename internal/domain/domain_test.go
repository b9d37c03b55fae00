package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFailure_Progression(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	u := &User{IsActive: true}

	for i := 1; i < SoftLockThreshold; i++ {
		assert.Equal(t, OutcomeAttemptsRemaining, u.RegisterFailure(now))
		assert.Equal(t, SoftLockThreshold-i, u.AttemptsBeforeLock())
	}

	assert.Equal(t, OutcomeSoftLocked, u.RegisterFailure(now))
	assert.Zero(t, u.AttemptsBeforeLock())
	assert.Equal(t, 5, u.AttemptsBeforeBlock())
	require.NotNil(t, u.LockedUntil)
	assert.Equal(t, now.Add(SoftLockDuration), *u.LockedUntil)

	locked, _ := u.CheckLock(now.Add(5 * time.Minute))
	assert.True(t, locked)
	assert.Equal(t, 10, u.MinutesRemaining(now.Add(5*time.Minute)))
	assert.Equal(t, 1, u.MinutesRemaining(now.Add(14*time.Minute+30*time.Second)), "rounded up")

	for i := SoftLockThreshold + 1; i < HardBlockThreshold; i++ {
		assert.Equal(t, OutcomeSoftLocked, u.RegisterFailure(now))
	}
	assert.False(t, u.IsHardBlocked())

	assert.Equal(t, OutcomeHardBlocked, u.RegisterFailure(now))
	assert.True(t, u.IsHardBlocked())
	assert.False(t, u.IsActive)

	locked, cleared := u.CheckLock(now.AddDate(1, 0, 0))
	assert.True(t, locked, "a hard block does not expire")
	assert.False(t, cleared)

	u.Unblock()
	assert.True(t, u.IsActive)
	assert.Zero(t, u.FailedLoginAttempts)
	locked, _ = u.CheckLock(now)
	assert.False(t, locked)
}

func TestCheckLock_ExpiredSoftLockClears(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	until := now.Add(SoftLockDuration)
	u := &User{IsActive: true, FailedLoginAttempts: SoftLockThreshold, LockedUntil: &until}

	locked, cleared := u.CheckLock(until)
	assert.False(t, locked, "the lock ends exactly at locked_until")
	assert.True(t, cleared)
	assert.Nil(t, u.LockedUntil)
	assert.Equal(t, SoftLockThreshold, u.FailedLoginAttempts, "the counter survives the expiry")
	assert.Zero(t, u.MinutesRemaining(until))

	locked, cleared = u.CheckLock(until)
	assert.False(t, locked)
	assert.False(t, cleared)
}

func TestRegisterSuccess(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	u := &User{IsActive: true, FailedLoginAttempts: 4}
	u.RegisterSuccess(now)
	assert.Zero(t, u.FailedLoginAttempts)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, now, *u.LastLoginAt)
}

func TestRoles(t *testing.T) {
	tests := []struct {
		role     Role
		staff    bool
		admin    bool
		schedule bool
	}{
		{RoleAdministrator, true, true, true},
		{RoleAdministrative, true, true, true},
		{RoleCoordinator, true, false, true},
		{RoleProvider, true, false, true},
		{RoleSocialAssistant, true, false, false},
		{RolePatient, false, false, false},
		{RoleFamilyPatient, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.True(t, tt.role.IsValid())
			assert.Equal(t, tt.staff, tt.role.IsStaff())
			assert.Equal(t, tt.admin, tt.role.IsAdmin())
			assert.Equal(t, tt.schedule, tt.role.CanManageSchedules())
		})
	}
	assert.False(t, Role("Janitor").IsValid())
}
