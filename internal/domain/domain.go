package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdministrative  Role = "Administrative"
	RolePatient         Role = "Patient"
	RoleCoordinator     Role = "Coordinator"
	RoleFamilyPatient   Role = "Family Patient"
	RoleSocialAssistant Role = "Social Assistant"
	RoleProvider        Role = "Provider"
	RoleAdministrator   Role = "Administrator"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdministrative, RolePatient, RoleCoordinator, RoleFamilyPatient,
		RoleSocialAssistant, RoleProvider, RoleAdministrator:
		return true
	}
	return false
}

// IsAdmin reports whether the role may take administrator decisions
// (contest resolution, invoice regeneration, account unblock).
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdministrator, RoleAdministrative:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to the organisation rather than to a care recipient.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdministrator, RoleAdministrative, RoleCoordinator, RoleSocialAssistant, RoleProvider:
		return true
	case RolePatient, RoleFamilyPatient:
		return false
	}
	return false
}

// CanManageSchedules gates write access to the scheduling engine.
func (r Role) CanManageSchedules() bool {
	switch r {
	case RoleAdministrator, RoleAdministrative, RoleCoordinator, RoleProvider:
		return true
	case RolePatient, RoleFamilyPatient, RoleSocialAssistant:
		return false
	}
	return false
}

const (
	SoftLockThreshold  = 5
	HardBlockThreshold = 10
	SoftLockDuration   = 15 * time.Minute
	// HardBlockDuration keeps locked_until far enough ahead that only an administrator clears it.
	HardBlockDuration = 10 * 365 * 24 * time.Hour
)

// AnonymizedName is the first name written over anonymized accounts.
const AnonymizedName = "anonymized"

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	Email          string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	FirstName      string     `gorm:"column:first_name;type:varchar(100);not null" json:"firstname"`
	LastName       string     `gorm:"column:last_name;type:varchar(100);not null" json:"lastname"`
	Birthdate      *time.Time `gorm:"column:birthdate;type:date" json:"birthdate,omitempty"`
	NationalNumber *string    `gorm:"column:national_number;type:varchar(20);uniqueIndex" json:"national_number,omitempty"`
	Phone          string     `gorm:"column:phone;type:varchar(30)" json:"phone,omitempty"`
	Role           Role       `gorm:"column:role;type:varchar(30);not null;index" json:"role"`

	// Back-links to the profile rows that point at this user.
	PatientID  *uuid.UUID `gorm:"column:patient_id;type:uuid;index" json:"patient_id,omitempty"`
	ProviderID *uuid.UUID `gorm:"column:provider_id;type:uuid;index" json:"provider_id,omitempty"`

	IsActive            bool       `gorm:"column:is_active;default:false;index" json:"is_active"`
	EmailVerified       bool       `gorm:"column:email_verified;default:false" json:"email_verified"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;default:0" json:"-"`
	LockedUntil         *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt         *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	PasswordChangedAt   time.Time  `gorm:"column:password_changed_at" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAnonymized reports whether the account was scrubbed on a deletion request.
func (u *User) IsAnonymized() bool {
	return strings.EqualFold(u.FirstName, AnonymizedName)
}

// IsHardBlocked reports the terminal lock state that only an administrator can clear.
func (u *User) IsHardBlocked() bool {
	return u.FailedLoginAttempts >= HardBlockThreshold && !u.IsActive
}

// CheckLock reports whether the account is locked at now. An expired soft lock is
// cleared on the receiver and cleared is true so the caller can persist it.
func (u *User) CheckLock(now time.Time) (locked, cleared bool) {
	if u.IsHardBlocked() {
		return true, false
	}
	if u.LockedUntil == nil {
		return false, false
	}
	if now.Before(*u.LockedUntil) {
		return true, false
	}
	u.LockedUntil = nil
	return false, true
}

// MinutesRemaining rounds the remaining lock time up to whole minutes.
func (u *User) MinutesRemaining(now time.Time) int {
	if u.LockedUntil == nil || !now.Before(*u.LockedUntil) {
		return 0
	}
	d := u.LockedUntil.Sub(now)
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

type LoginOutcome int

const (
	OutcomeAttemptsRemaining LoginOutcome = iota
	OutcomeSoftLocked
	OutcomeHardBlocked
)

// RegisterFailure applies one failed password verification.
func (u *User) RegisterFailure(now time.Time) LoginOutcome {
	u.FailedLoginAttempts++
	switch {
	case u.FailedLoginAttempts >= HardBlockThreshold:
		until := now.Add(HardBlockDuration)
		u.IsActive = false
		u.LockedUntil = &until
		return OutcomeHardBlocked
	case u.FailedLoginAttempts >= SoftLockThreshold:
		until := now.Add(SoftLockDuration)
		u.LockedUntil = &until
		return OutcomeSoftLocked
	}
	return OutcomeAttemptsRemaining
}

// AttemptsBeforeLock is the number of failures left before the soft lock engages.
func (u *User) AttemptsBeforeLock() int {
	if n := SoftLockThreshold - u.FailedLoginAttempts; n > 0 {
		return n
	}
	return 0
}

// AttemptsBeforeBlock is the number of failures left before the hard block engages.
func (u *User) AttemptsBeforeBlock() int {
	if n := HardBlockThreshold - u.FailedLoginAttempts; n > 0 {
		return n
	}
	return 0
}

func (u *User) RegisterSuccess(now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.IsActive = true
	u.LastLoginAt = &now
}

// Unblock is the administrator override for both lock kinds.
func (u *User) Unblock() {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.IsActive = true
}

// UserToken records an issued token pair. Only SHA-256 hashes are stored.
type UserToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	UserID           uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	AccessTokenHash  string     `gorm:"column:access_token_hash;type:char(64);not null;index"`
	RefreshTokenHash string     `gorm:"column:refresh_token_hash;type:char(64);not null;uniqueIndex"`
	AccessExpiresAt  time.Time  `gorm:"column:access_expires_at;not null"`
	RefreshExpiresAt time.Time  `gorm:"column:refresh_expires_at;not null;index"`
	Revoked          bool       `gorm:"column:revoked;default:false;index"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
}

func (UserToken) TableName() string {
	return "user_tokens"
}

type AuditAction string

const (
	ActionCreate       AuditAction = "create"
	ActionRead         AuditAction = "read"
	ActionUpdate       AuditAction = "update"
	ActionDelete       AuditAction = "delete"
	ActionLogin        AuditAction = "login"
	ActionLogout       AuditAction = "logout"
	ActionUnauthorized AuditAction = "unauthorized"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	UserRole  Role       `gorm:"column:user_role;type:varchar(30)"`
	IPAddress string     `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID  string `gorm:"column:request_id;type:varchar(50);index"`
	Path       string `gorm:"column:path;type:varchar(255)"`
	StatusCode int    `gorm:"column:status_code"`

	Changes datatypes.JSON `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

type TokenPair struct {
	AccessToken      string    `json:"access"`
	RefreshToken     string    `json:"refresh"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID     uuid.UUID  `json:"sub"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
	// TokenID is the jti of the token the claims were read from.
	TokenID string `json:"jti,omitempty"`
}

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID     uuid.UUID
	Role       Role
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	IP         string
}

func (c *Claims) Actor(ip string) Actor {
	return Actor{UserID: c.UserID, Role: c.Role, PatientID: c.PatientID, ProviderID: c.ProviderID, IP: ip}
}
