package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotVerified    = errors.New("email address has not been verified")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or has been revoked")
	ErrIncorrectPassword   = errors.New("current password is incorrect")
)

// TokenBlacklist is the fast-path store of revoked refresh-token hashes.
type TokenBlacklist interface {
	Add(ctx context.Context, hash string, ttl time.Duration) error
	Contains(ctx context.Context, hash string) (bool, error)
}

type noopBlacklist struct{}

func (noopBlacklist) Add(context.Context, string, time.Duration) error { return nil }
func (noopBlacklist) Contains(context.Context, string) (bool, error) { return false, nil }

type LoginResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

type AuthService struct {
	users      domain.UserRepository
	tokens     domain.TokenRepository
	blacklist  TokenBlacklist
	jwtManager *auth.JWTManager
	auditSvc   *AuditService
	metrics    *metrics.Collector
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService accepts a nil blacklist when Redis is disabled; revocation then
// relies on the token table alone.
func NewAuthService(
	users domain.UserRepository,
	tokens domain.TokenRepository,
	blacklist TokenBlacklist,
	jwtManager *auth.JWTManager,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	if blacklist == nil {
		blacklist = noopBlacklist{}
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		blacklist:  blacklist,
		jwtManager: jwtManager,
		auditSvc:   auditSvc,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// Login verifies the password and walks the lockout state machine: five
// consecutive failures soft-lock the account for 15 minutes, ten deactivate it.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("loading user: %w", err)
		}
		// Burn the same bcrypt cost so response time does not reveal unknown emails.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	locked, cleared := user.CheckLock(now)
	if cleared {
		if err := s.users.UpdateLoginState(ctx, user); err != nil {
			return nil, fmt.Errorf("clearing expired lock: %w", err)
		}
	}
	if locked {
		return nil, s.lockoutError(user, now, "")
	}

	if !auth.ComparePassword(user.PasswordHash, password) {
		return nil, s.recordFailure(ctx, user, now, ip)
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user.RegisterSuccess(now)
	if err := s.users.UpdateLoginState(ctx, user); err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &user.ID,
		UserRole:     user.Role,
		Action:       domain.ActionLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		IPAddress:    ip,
	})
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *domain.User, now time.Time, ip string) error {
	outcome := user.RegisterFailure(now)
	if err := s.users.UpdateLoginState(ctx, user); err != nil {
		return fmt.Errorf("recording failed login: %w", err)
	}

	s.log.Warn("failed login attempt",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
		zap.Int("attempts", user.FailedLoginAttempts),
	)

	switch outcome {
	case domain.OutcomeHardBlocked:
		return s.lockoutError(user, now, "")
	case domain.OutcomeSoftLocked:
		warning := fmt.Sprintf("%d attempts remain before your account is blocked.", user.AttemptsBeforeBlock())
		return s.lockoutError(user, now, warning)
	}
	s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
	return &CredentialsError{AttemptsRemaining: user.AttemptsBeforeLock()}
}

func (s *AuthService) lockoutError(user *domain.User, now time.Time, warning string) *LockoutError {
	if user.IsHardBlocked() {
		s.metrics.LoginAttempts.WithLabelValues("hard_blocked").Inc()
		return &LockoutError{Hard: true}
	}
	s.metrics.LoginAttempts.WithLabelValues("soft_locked").Inc()
	return &LockoutError{
		LockedUntil: user.LockedUntil,
		Minutes:     user.MinutesRemaining(now),
		Warning:     warning,
	}
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	pair, err := s.jwtManager.GenerateTokenPair(&domain.Claims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		PatientID:  user.PatientID,
		ProviderID: user.ProviderID,
	})
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	err = s.tokens.Create(ctx, &domain.UserToken{
		UserID:           user.ID,
		AccessTokenHash:  auth.HashToken(pair.AccessToken),
		RefreshTokenHash: auth.HashToken(pair.RefreshToken),
		AccessExpiresAt:  pair.ExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("storing tokens: %w", err)
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, expiresAt, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	hash := auth.HashToken(refreshToken)

	blacklisted, err := s.blacklist.Contains(ctx, hash)
	if err != nil {
		s.log.Warn("refresh blacklist unavailable, falling back to database", zap.Error(err))
	}
	if blacklisted {
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.tokens.GetByRefreshHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}
	if stored.Revoked || stored.UserID != claims.UserID {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.revoke(ctx, hash, expiresAt); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes refreshToken. Unknown, expired or already revoked tokens are not errors.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	hash := auth.HashToken(refreshToken)

	var expiresAt time.Time
	if claims, exp, err := s.jwtManager.ValidateRefreshToken(refreshToken); err == nil {
		expiresAt = exp
		s.auditSvc.LogAsync(ctx, AuditEntry{
			UserID:       &claims.UserID,
			UserRole:     claims.Role,
			Action:       domain.ActionLogout,
			ResourceType: "user",
			ResourceID:   claims.UserID.String(),
		})
	}
	return s.revoke(ctx, hash, expiresAt)
}

func (s *AuthService) revoke(ctx context.Context, hash string, expiresAt time.Time) error {
	now := s.now()
	if _, err := s.tokens.Revoke(ctx, hash, now); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	if err := s.blacklist.Add(ctx, hash, expiresAt.Sub(now)); err != nil {
		s.log.Warn("failed to cache revoked refresh token", zap.Error(err))
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !auth.ComparePassword(user.PasswordHash, currentPassword) {
		return ErrIncorrectPassword
	}

	if report := auth.CheckPassword(newPassword); !report.Valid {
		return &ValidationError{Fields: report.Failures}
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	if err := s.users.UpdatePassword(ctx, userID, hash, now); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID, now); err != nil {
		return fmt.Errorf("revoking sessions: %w", err)
	}
	return nil
}

func (s *AuthService) PasswordStrength(password string) auth.PasswordReport {
	return auth.CheckPassword(password)
}

// Unblock clears both lock kinds. Administrators only.
func (s *AuthService) Unblock(ctx context.Context, actor domain.Actor, userID uuid.UUID) (*domain.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Unblock()
	if err := s.users.UpdateLoginState(ctx, user); err != nil {
		return nil, fmt.Errorf("unblocking user: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "user",
		ResourceID:   userID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"unblocked": true},
	})
	return user, nil
}

type CreateUserCommand struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      domain.Role
}

// CreateUser provisions an active, verified account. Used by the CLI for operators.
func (s *AuthService) CreateUser(ctx context.Context, cmd CreateUserCommand) (*domain.User, error) {
	var fields []string
	if !strings.Contains(cmd.Email, "@") {
		fields = append(fields, "email: must be a valid address")
	}
	if strings.TrimSpace(cmd.FirstName) == "" || strings.TrimSpace(cmd.LastName) == "" {
		fields = append(fields, "name: first and last name are required")
	}
	if !cmd.Role.IsValid() {
		fields = append(fields, "role: "+domain.ErrInvalidRole.Error())
	}
	if report := auth.CheckPassword(cmd.Password); !report.Valid {
		fields = append(fields, report.Failures...)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &domain.User{
		Email:             cmd.Email,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(cmd.FirstName),
		LastName:          strings.TrimSpace(cmd.LastName),
		Phone:             strings.TrimSpace(cmd.Phone),
		Role:              cmd.Role,
		IsActive:          true,
		EmailVerified:     true,
		PasswordChangedAt: s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
