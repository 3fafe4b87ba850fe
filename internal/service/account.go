package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/errors"
	"github.com/manabi-dev/manabi/internal/logger"
)

// Failed re-authentication inside an authenticated flow must not reveal
// whether the account exists or the password was wrong.
const authFailedMsg = "Authentication failed"

// reauthenticate loads the user and verifies the supplied password. Missing
// users and wrong passwords are indistinguishable to the caller.
func (a *Auth) reauthenticate(userId domain.UserId, password string) (domain.User, error) {
	user, err := a.storage.UserById(userId)
	if err != nil {
		if errors.IsNotFound(err) {
			return domain.User{}, errors.NewAuthentication(authFailedMsg)
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, errors.NewAuthentication(authFailedMsg)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, errors.NewAuthentication(authFailedMsg)
	}
	return user, nil
}

// ChangePassword verifies the current password, enforces the history bound,
// persists the new hash, and then revokes every session. The revocation is
// attempted before success is reported so a racing request with the old
// refresh token is likely to observe it, but it is best-effort: a registry
// failure does not roll back the password change. The notification email is
// fire-and-forget.
func (a *Auth) ChangePassword(ctx context.Context, userId domain.UserId, currentPassword, newPassword string) error {
	user, err := a.reauthenticate(userId, currentPassword)
	if err != nil {
		return err
	}

	if a.passwordUsedBefore(user, newPassword) {
		return errors.NewValidation("New password must differ from recently used passwords")
	}

	if err := applyNewPassword(&user, newPassword); err != nil {
		return err
	}
	if err := a.storage.UpdateUser(user); err != nil {
		return err
	}

	if err := a.registry.InvalidateAllSessions(ctx, userId); err != nil {
		logger.Log.Warn("failed to invalidate sessions after password change", "user_id", userId, "error", err)
	}

	if err := a.email.SendPasswordChangeNotification(user.Email); err != nil {
		logger.Log.Warn("failed to send password change notification", "user_id", userId, "error", err)
	}

	return nil
}

// DeleteAccount destroys the user record after password verification. The
// schema cascades to dependent profile and progress rows; session revocation
// follows best-effort.
func (a *Auth) DeleteAccount(ctx context.Context, userId domain.UserId, password string) error {
	if _, err := a.reauthenticate(userId, password); err != nil {
		return err
	}

	if err := a.storage.DeleteUser(userId); err != nil {
		return err
	}

	if err := a.registry.InvalidateAllSessions(ctx, userId); err != nil {
		logger.Log.Warn("failed to invalidate sessions after account deletion", "user_id", userId, "error", err)
	}

	return nil
}

// RequestEmailChange verifies the password and mails a signed confirmation
// link to the new address. The send is fire-and-forget: a mail failure is
// logged, not surfaced, so the response cannot be used to probe mailboxes.
func (a *Auth) RequestEmailChange(ctx context.Context, userId domain.UserId, newEmail domain.Email, currentPassword string) error {
	newEmail = strings.ToLower(newEmail)

	if err := a.email.IsCorrect(newEmail); err != nil {
		return err
	}

	if _, err := a.storage.UserByEmail(newEmail); err == nil {
		return errors.NewValidation("This email address is already in use")
	} else if !errors.IsNotFound(err) {
		return err
	}

	if _, err := a.reauthenticate(userId, currentPassword); err != nil {
		return err
	}

	changeToken, err := a.tokens.NewEmailChangeToken(userId, newEmail)
	if err != nil {
		return err
	}

	verificationLink := a.clientURL + "/account/verify-email?token=" + changeToken
	if err := a.email.SendEmailChangeVerification(newEmail, verificationLink); err != nil {
		logger.Log.Warn("failed to send email change verification", "user_id", userId, "error", err)
	}

	return nil
}

// VerifyEmailChange applies the change carried by a valid confirmation token.
func (a *Auth) VerifyEmailChange(ctx context.Context, tokenStr string) error {
	userId, newEmail, err := a.tokens.VerifyEmailChangeToken(tokenStr)
	if err != nil {
		return errors.NewValidation("Invalid token")
	}

	if _, err := a.storage.UserById(userId); err != nil {
		if errors.IsNotFound(err) {
			return errors.NewValidation("Invalid token")
		}
		return err
	}

	return a.storage.UpdateEmail(userId, newEmail)
}

// UpdateUserRole assigns one of the known roles. Admin-gated at the router.
func (a *Auth) UpdateUserRole(ctx context.Context, userId domain.UserId, role domain.Role) error {
	if !role.Valid() {
		return errors.NewValidation("Unknown role")
	}

	user, err := a.storage.UserById(userId)
	if err != nil {
		return err
	}
	user.Role = role
	return a.storage.UpdateUser(user)
}

// SetUserActive toggles the active flag. Deactivation also revokes the
// user's sessions so the account goes dark without waiting for token expiry.
func (a *Auth) SetUserActive(ctx context.Context, userId domain.UserId, active bool) error {
	user, err := a.storage.UserById(userId)
	if err != nil {
		return err
	}

	user.IsActive = active
	if err := a.storage.UpdateUser(user); err != nil {
		return err
	}

	if !active {
		if err := a.registry.InvalidateAllSessions(ctx, userId); err != nil {
			logger.Log.Warn("failed to invalidate sessions after deactivation", "user_id", userId, "error", err)
		}
	}

	return nil
}
