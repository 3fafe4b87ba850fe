package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/manabi-dev/manabi/internal/domain"
	internal_errors "github.com/manabi-dev/manabi/internal/errors"
)

const uniqueViolation = "23505"

// =========================================================================
// Public Methods (satisfy the service.UserStorage interface)
// =========================================================================

// SaveUser is the public entry point for creating a new user record. It wraps
// the insert in a transaction so the row and its initial password history land
// atomically.
func (s *Storage) SaveUser(user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.UserId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveUser(tx, user)
		return err
	})
	return id, err
}

// UserByEmail is a public, read-only method to fetch a user by their email.
func (s *Storage) UserByEmail(email domain.Email) (domain.User, error) {
	return s.user(s.db, "email = $1", email)
}

// UserById is a public, read-only method to fetch a user by their id.
func (s *Storage) UserById(id domain.UserId) (domain.User, error) {
	return s.user(s.db, "id = $1", id)
}

// UpdateUser is the public entry point for persisting the mutable credential
// fields: password hash and history, verification state, reset token state,
// role and active flag. It manages the transaction for this security-sensitive
// operation.
func (s *Storage) UpdateUser(user domain.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateUser(tx, user)
	})
}

// UpdateEmail is the public entry point for applying a confirmed email change.
func (s *Storage) UpdateEmail(id domain.UserId, email domain.Email) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateEmail(tx, id, email)
	})
}

// DeleteUser is the public entry point for destroying a user account. The
// schema's ON DELETE CASCADE constraints clean up dependent profile and
// progress rows.
func (s *Storage) DeleteUser(id domain.UserId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteUser(tx, id)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

const userColumns = `id, email, name, password_hash, role, is_verified, is_active,
	verification_code, verification_expires, reset_token_hash, reset_expires,
	password_history, created_at`

func (s *Storage) saveUser(q Querier, user domain.User) (domain.UserId, error) {
	history, err := json.Marshal(user.PasswordHistory)
	if err != nil {
		return -1, fmt.Errorf("failed to marshal password history: %w", err)
	}

	var id domain.UserId
	err = q.QueryRow(`
        INSERT INTO users(email, name, password_hash, role, is_verified, is_active,
                          verification_code, verification_expires, password_history)
        VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		user.Email, nullString(user.Name), nullString(user.PasswordHash), string(user.Role),
		user.IsVerified, user.IsActive,
		nullString(user.VerificationCode), nullTime(user.VerificationExpires), history,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return -1, internal_errors.NewValidation("This email address is already in use")
		}
		return -1, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (s *Storage) user(q Querier, where string, arg any) (domain.User, error) {
	var (
		user                domain.User
		name                sql.NullString
		passwordHash        sql.NullString
		role                string
		verificationCode    sql.NullString
		verificationExpires sql.NullTime
		resetTokenHash      sql.NullString
		resetExpires        sql.NullTime
		history             []byte
	)
	err := q.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where, arg).Scan(
		&user.Id, &user.Email, &name, &passwordHash, &role, &user.IsVerified, &user.IsActive,
		&verificationCode, &verificationExpires, &resetTokenHash, &resetExpires,
		&history, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, internal_errors.NewNotFound("User not found")
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}

	user.Name = name.String
	user.PasswordHash = passwordHash.String
	user.Role = domain.Role(role)
	user.VerificationCode = verificationCode.String
	user.VerificationExpires = verificationExpires.Time
	user.ResetTokenHash = resetTokenHash.String
	user.ResetExpires = resetExpires.Time
	if err := json.Unmarshal(history, &user.PasswordHistory); err != nil {
		return domain.User{}, fmt.Errorf("failed to unmarshal password history: %w", err)
	}
	return user, nil
}

func (s *Storage) updateUser(q Querier, user domain.User) error {
	history, err := json.Marshal(user.PasswordHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal password history: %w", err)
	}

	result, err := q.Exec(`
        UPDATE users SET
            password_hash = $1, role = $2, is_verified = $3, is_active = $4,
            verification_code = $5, verification_expires = $6,
            reset_token_hash = $7, reset_expires = $8, password_history = $9
        WHERE id = $10`,
		nullString(user.PasswordHash), string(user.Role), user.IsVerified, user.IsActive,
		nullString(user.VerificationCode), nullTime(user.VerificationExpires),
		nullString(user.ResetTokenHash), nullTime(user.ResetExpires), history,
		user.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRowsAffected(result, "User not found for update")
}

func (s *Storage) updateEmail(q Querier, id domain.UserId, email domain.Email) error {
	result, err := q.Exec("UPDATE users SET email = $1 WHERE id = $2", email, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return internal_errors.NewValidation("This email address is already in use")
		}
		return fmt.Errorf("failed to update email: %w", err)
	}
	return requireRowsAffected(result, "User not found for email update")
}

func (s *Storage) deleteUser(q Querier, id domain.UserId) error {
	result, err := q.Exec("DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowsAffected(result, "User not found for deletion")
}

func requireRowsAffected(result sql.Result, notFoundMsg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return internal_errors.NewNotFound(notFoundMsg)
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v time.Time) sql.NullTime {
	return sql.NullTime{Time: v, Valid: !v.IsZero()}
}
