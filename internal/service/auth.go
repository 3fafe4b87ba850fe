package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/errors"
	"github.com/manabi-dev/manabi/internal/logger"
	"github.com/manabi-dev/manabi/internal/utils"
)

// passwordHashCost is deliberately above bcrypt's default.
const passwordHashCost = 12

const verificationCodeLen = 6

// Login failures must never reveal whether the email or the password was
// wrong, so every credential mismatch surfaces as this one message.
const invalidCredentialsMsg = "Invalid email or password"

// AuthService covers the unauthenticated half of the session lifecycle.
type AuthService interface {
	Register(ctx context.Context, email domain.Email, password string) error
	VerifyEmail(ctx context.Context, email domain.Email, code string) error
	Login(ctx context.Context, email domain.Email, password string) (TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	RequestPasswordReset(ctx context.Context, email domain.Email) error
	ResetPassword(ctx context.Context, email domain.Email, resetToken, newPassword string) error
}

// AccountService covers operations on an already authenticated account.
type AccountService interface {
	ChangePassword(ctx context.Context, userId domain.UserId, currentPassword, newPassword string) error
	DeleteAccount(ctx context.Context, userId domain.UserId, password string) error
	RequestEmailChange(ctx context.Context, userId domain.UserId, newEmail domain.Email, currentPassword string) error
	VerifyEmailChange(ctx context.Context, token string) error
	UpdateUserRole(ctx context.Context, userId domain.UserId, role domain.Role) error
	SetUserActive(ctx context.Context, userId domain.UserId, active bool) error
}

type TokenPair struct {
	Access  string
	Refresh string
}

type UserStorage interface {
	SaveUser(user domain.User) (domain.UserId, error)
	UserByEmail(email domain.Email) (domain.User, error)
	UserById(id domain.UserId) (domain.User, error)
	UpdateUser(user domain.User) error
	UpdateEmail(id domain.UserId, email domain.Email) error
	DeleteUser(id domain.UserId) error
}

type SessionRegistry interface {
	InvalidateRefreshToken(ctx context.Context, token string) error
	InvalidateAllSessions(ctx context.Context, userId domain.UserId) error
	BlacklistToken(ctx context.Context, token string, ttl time.Duration) error
}

type TokenService interface {
	NewAccessToken(userId domain.UserId, role domain.Role) (string, error)
	NewRefreshToken(ctx context.Context, userId domain.UserId) (string, error)
	VerifyRefreshToken(ctx context.Context, token string) (domain.UserId, bool)
	NewEmailChangeToken(userId domain.UserId, newEmail domain.Email) (string, error)
	VerifyEmailChangeToken(token string) (domain.UserId, domain.Email, error)
	RemainingLifetime(token string) time.Duration
}

type Email interface {
	IsCorrect(email string) error
	SendVerificationEmail(to, code string) error
	SendPasswordResetEmail(to, resetLink string) error
	SendEmailChangeVerification(to, verificationLink string) error
	SendPasswordChangeNotification(to string) error
}

// Auth orchestrates login, logout, refresh and the credential-mutating flows
// across the credential store, the session registry and the token service.
// The store and the registry are separate systems and are deliberately not
// wrapped in one transaction: session invalidation is idempotent, attempted
// before the success response, and safe to fail without rolling back the
// primary change.
type Auth struct {
	storage  UserStorage
	registry SessionRegistry
	tokens   TokenService
	email    Email

	clientURL       string
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewAuth(storage UserStorage, registry SessionRegistry, tokens TokenService, email Email, clientURL string, verificationTTL, resetTTL time.Duration) *Auth {
	return &Auth{
		storage:         storage,
		registry:        registry,
		tokens:          tokens,
		email:           email,
		clientURL:       strings.TrimRight(clientURL, "/"),
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

// Register creates an unverified account and mails the verification code.
// The mail send is part of the user-visible success path here, so its failure
// fails the registration.
func (a *Auth) Register(ctx context.Context, email domain.Email, password string) error {
	email = strings.ToLower(email)

	if err := a.email.IsCorrect(email); err != nil {
		return err
	}

	if _, err := a.storage.UserByEmail(email); err == nil {
		return errors.NewValidation("This email address is already in use")
	} else if !errors.IsNotFound(err) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	user := domain.User{
		Email:               email,
		PasswordHash:        hash,
		Role:                domain.RoleGeneral,
		IsActive:            true,
		VerificationCode:    utils.GenerateVerificationCode(verificationCodeLen),
		VerificationExpires: time.Now().UTC().Add(a.verificationTTL),
		PasswordHistory:     []string{hash},
	}
	if _, err := a.storage.SaveUser(user); err != nil {
		return err
	}

	return a.email.SendVerificationEmail(email, user.VerificationCode)
}

// VerifyEmail confirms the address with the mailed code.
func (a *Auth) VerifyEmail(ctx context.Context, email domain.Email, code string) error {
	email = strings.ToLower(email)

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.NewValidation("Invalid verification code")
		}
		return err
	}

	if user.VerificationCode == "" || user.VerificationCode != code || time.Now().After(user.VerificationExpires) {
		return errors.NewValidation("Invalid verification code")
	}

	user.IsVerified = true
	user.VerificationCode = ""
	user.VerificationExpires = time.Time{}
	return a.storage.UpdateUser(user)
}

// Login verifies credentials and issues both tokens. A failed registry write
// for the refresh token degrades session tracking but does not fail the
// login; the untracked token simply never passes verification later.
func (a *Auth) Login(ctx context.Context, email domain.Email, password string) (TokenPair, error) {
	email = strings.ToLower(email)

	if err := a.email.IsCorrect(email); err != nil {
		return TokenPair{}, err
	}

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			// to not leak existing users
			return TokenPair{}, errors.NewAuthentication(invalidCredentialsMsg)
		}
		return TokenPair{}, err
	}

	// Federated-identity-only accounts have no password to check.
	if user.PasswordHash == "" {
		return TokenPair{}, errors.NewAuthentication(invalidCredentialsMsg)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, errors.NewAuthentication(invalidCredentialsMsg)
	}

	if !user.IsVerified {
		return TokenPair{}, errors.NewAuthorization("Email address is not verified")
	}

	access, err := a.tokens.NewAccessToken(user.Id, user.Role)
	if err != nil {
		logger.Log.Error("failed to create access token", "user_id", user.Id, "error", err)
		return TokenPair{}, err
	}

	refresh, err := a.tokens.NewRefreshToken(ctx, user.Id)
	if err != nil {
		if refresh == "" {
			logger.Log.Error("failed to create refresh token", "user_id", user.Id, "error", err)
			return TokenPair{}, err
		}
		// Signed but not registered: the session cannot be refreshed later,
		// which beats failing the login outright.
		logger.Log.Warn("refresh token not registered, session tracking degraded", "user_id", user.Id, "error", err)
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout revokes the presented tokens best-effort. The caller clears cookies
// unconditionally, so partial registry failures only mean weaker server-side
// bookkeeping, never a failed logout.
func (a *Auth) Logout(ctx context.Context, accessToken, refreshToken string) {
	if refreshToken != "" {
		if err := a.registry.InvalidateRefreshToken(ctx, refreshToken); err != nil {
			logger.Log.Warn("failed to invalidate refresh token", "error", err)
		}
	}
	if accessToken != "" {
		ttl := a.tokens.RemainingLifetime(accessToken)
		if err := a.registry.BlacklistToken(ctx, accessToken, ttl); err != nil {
			logger.Log.Warn("failed to blacklist access token", "error", err)
		}
	}
}

// Refresh mints a new access token for a live refresh token. The refresh
// token itself is not rotated.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userId, ok := a.tokens.VerifyRefreshToken(ctx, refreshToken)
	if !ok {
		return "", errors.NewAuthentication("Invalid refresh token")
	}

	user, err := a.storage.UserById(userId)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.NewAuthentication("Invalid refresh token")
		}
		return "", err
	}
	if !user.IsActive {
		return "", errors.NewAuthentication("Invalid refresh token")
	}

	return a.tokens.NewAccessToken(user.Id, user.Role)
}

// RequestPasswordReset stores a reset token hash and mails the link. It
// reports success whether or not the address exists, so callers cannot probe
// for registered emails.
func (a *Auth) RequestPasswordReset(ctx context.Context, email domain.Email) error {
	email = strings.ToLower(email)

	if err := a.email.IsCorrect(email); err != nil {
		return err
	}

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}

	resetToken, hash, err := utils.NewResetToken()
	if err != nil {
		return err
	}

	user.ResetTokenHash = hash
	user.ResetExpires = time.Now().UTC().Add(a.resetTTL)
	if err := a.storage.UpdateUser(user); err != nil {
		return err
	}

	resetLink := a.clientURL + "/reset-password?token=" + resetToken + "&email=" + url.QueryEscape(email)
	return a.email.SendPasswordResetEmail(email, resetLink)
}

// ResetPassword completes the forgotten-password flow: the supplied token is
// re-hashed and matched against the stored hash within its expiry window, and
// the new password passes the same history rules as a regular change.
func (a *Auth) ResetPassword(ctx context.Context, email domain.Email, resetToken, newPassword string) error {
	email = strings.ToLower(email)

	user, err := a.storage.UserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.NewValidation("Invalid reset token")
		}
		return err
	}

	if user.ResetTokenHash == "" || user.ResetTokenHash != utils.HashToken(resetToken) || time.Now().After(user.ResetExpires) {
		return errors.NewValidation("Invalid reset token")
	}

	if a.passwordUsedBefore(user, newPassword) {
		return errors.NewValidation("New password must differ from recently used passwords")
	}

	if err := applyNewPassword(&user, newPassword); err != nil {
		return err
	}
	user.ResetTokenHash = ""
	user.ResetExpires = time.Time{}
	return a.storage.UpdateUser(user)
}

// passwordUsedBefore reports whether candidate matches any retained history
// entry. History entries are bcrypt hashes, so each check is a full compare.
func (a *Auth) passwordUsedBefore(user domain.User, candidate string) bool {
	for _, oldHash := range user.PasswordHistory {
		if bcrypt.CompareHashAndPassword([]byte(oldHash), []byte(candidate)) == nil {
			return true
		}
	}
	return false
}

// applyNewPassword hashes the new password and rolls it into the bounded
// history. The caller persists the user afterwards.
func applyNewPassword(user *domain.User, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}
	user.PasswordHash = hash
	user.PushPasswordHistory(hash)
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
