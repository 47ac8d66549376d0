package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/internal/mail"
	"github.com/reqforge/apiserver/internal/store"
	"github.com/reqforge/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost      = 10
	resetTokenBytes = 32
	resetTokenTTL   = 24 * time.Hour
)

// ErrInvalidResetToken is returned when a reset token is unknown, expired
// or already consumed. Callers must not distinguish between those causes.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// ErrNotifierFailure wraps a failed outbound email. Handlers surface it as a
// generic retry-later message, never the transport detail.
var ErrNotifierFailure = errors.New("notifier failure")

// dummyHash keeps the bcrypt comparison on the unknown-email login path so
// its timing resembles the wrong-password path.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("login-timing-equalizer"), bcryptCost)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByValidResetToken(ctx context.Context, tokenHash string) (types.User, error)
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) error
}

// AuthService composes the credential store, the mailer and the token
// lifecycle into the operations route handlers call.
type AuthService struct {
	users      UserRepository
	mailer     mail.Mailer
	log        logging.Logger
	appBaseURL string
}

func NewAuthService(users UserRepository, mailer mail.Mailer, log logging.Logger, appBaseURL string) *AuthService {
	return &AuthService{
		users:      users,
		mailer:     mailer,
		log:        log,
		appBaseURL: appBaseURL,
	}
}

// Register creates a new account. It returns store.ErrDuplicateEmail when the
// email is already registered. The plaintext password never leaves this call.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	return s.users.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
	})
}

// Login verifies credentials. It returns (nil, nil) on any mismatch: an
// unknown email and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*types.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, nil
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}

	return &user, nil
}

// GetUser loads the account behind a session's user id.
func (s *AuthService) GetUser(ctx context.Context, id string) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// RequestPasswordReset issues a reset token for the email, if it is
// registered, and hands the reset link to the mailer. It deliberately
// succeeds when the email is unknown so the response shape never reveals
// which addresses exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	rawToken, err := newResetToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(rawToken), expiresAt); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.appBaseURL, rawToken)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		s.log.Error(ctx, "password reset email failed", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrNotifierFailure, err)
	}

	return nil
}

// ValidateResetToken checks that a reset token is known and unexpired, so
// the reset form can be refused up front. It does not consume the token.
func (s *AuthService) ValidateResetToken(ctx context.Context, rawToken string) error {
	if _, err := s.users.GetByValidResetToken(ctx, hashResetToken(rawToken)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The store
// update is conditional on the token hash still being present and unexpired,
// so a token can be consumed at most once even under concurrent attempts.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}

	if err := s.users.ConsumeResetToken(ctx, hashResetToken(rawToken), string(hashed)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
