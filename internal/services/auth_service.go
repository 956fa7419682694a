package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/internal/models"
	"github.com/AnshRaj112/echoes-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	// ResetCodeDigits is the length of a password reset code
	ResetCodeDigits = 6
	// ResetCodeTTL is how long a reset code stays valid
	ResetCodeTTL = 15 * time.Minute
)

// now is swapped in tests
var now = time.Now

// ResetCode is an issued password reset code.
type ResetCode struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a user. It fails with models.ErrDuplicateEmail if the address is taken.
func Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	var exists bool
	if err := database.PostgresDB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, models.ErrDuplicateEmail
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Name: name, Email: email, Password: hashed}
	err = database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, name, email, hashed).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		// Lost a race with a concurrent signup for the same address
		if database.IsPQError(err, database.UniqueViolation) {
			return nil, models.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login checks credentials. Unknown email and wrong password both yield models.ErrInvalidCredentials.
func Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := userByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	valid, err := utils.VerifyPassword(password, user.Password)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("stored password hash unreadable")
		return nil, models.ErrInvalidCredentials
	}
	if !valid {
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

// ForgotPassword issues a fresh single-use reset code for email and burns any earlier unused ones.
// There is no mail delivery; the caller hands the code back to the client.
func ForgotPassword(ctx context.Context, email string) (*ResetCode, error) {
	email = NormalizeEmail(email)
	user, err := userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := utils.GenerateNumericCode(ResetCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate reset code: %w", err)
	}
	expiresAt := now().Add(ResetCodeTTL)

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE password_reset_codes SET used = TRUE
		WHERE user_id = $1 AND used = FALSE
	`, user.ID); err != nil {
		return nil, fmt.Errorf("burn old reset codes: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO password_reset_codes (user_id, code, expires_at)
		VALUES ($1, $2, $3)
	`, user.ID, code, expiresAt); err != nil {
		return nil, fmt.Errorf("store reset code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &ResetCode{Email: email, Code: code, ExpiresAt: expiresAt}, nil
}

// ResetPassword replaces the password when code is the live code issued for email.
// Anything else (never issued, already used, expired, other account) is models.ErrInvalidCode.
func ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var codeID, userID int64
	err = tx.QueryRowContext(ctx, `
		SELECT rc.id, u.id
		FROM password_reset_codes rc
		JOIN users u ON u.id = rc.user_id
		WHERE u.email = $1 AND rc.code = $2 AND rc.used = FALSE AND rc.expires_at > $3
		ORDER BY rc.created_at DESC
		LIMIT 1
		FOR UPDATE OF rc
	`, email, code, now()).Scan(&codeID, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("look up reset code: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hashed, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_reset_codes SET used = TRUE WHERE id = $1`, codeID); err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Sessions opened with the old password are dropped
	if err := InvalidateUserSessions(ctx, userID); err != nil && !errors.Is(err, ErrSessionStoreUnavailable) {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to invalidate sessions after password reset")
	}
	return nil
}

// PurgeResetCodes deletes used and expired reset codes and returns how many were removed.
func PurgeResetCodes(ctx context.Context) (int64, error) {
	res, err := database.PostgresDB.ExecContext(ctx,
		`DELETE FROM password_reset_codes WHERE used = TRUE OR expires_at <= $1`, now())
	if err != nil {
		return 0, fmt.Errorf("purge reset codes: %w", err)
	}
	return res.RowsAffected()
}

func userByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, name, email, password, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	return &user, nil
}
