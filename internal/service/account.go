// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/repository"
)

// Service errors.
var (
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired activation token")
	ErrInvalidCredentials    = errors.New("incorrect email or password")
	ErrNotActivated          = errors.New("account not activated")
	ErrEmailDelivery         = errors.New("failed to send activation email")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrInvalidPassword       = errors.New("password must not be empty")
	ErrUserNotFound          = errors.New("user not found")
)

// TokenType is the fixed marker returned with every token pair.
const TokenType = "bearer"

// Store is the slice of the repository the account service depends on.
type Store interface {
	CreateUser(ctx context.Context, user *model.User, token *model.ActivationToken) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ConsumeActivationToken(ctx context.Context, token string, now time.Time) error
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
}

// Notifier delivers the activation email for a freshly created account.
type Notifier interface {
	Send(ctx context.Context, email, token string) error
}

// SweepEnqueuer schedules an expired-token sweep without blocking.
type SweepEnqueuer interface {
	EnqueueAsync()
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// Config holds the token lifetimes the service issues with.
type Config struct {
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ActivationTokenTTL time.Duration
}

// AccountService orchestrates registration, activation and sessions.
type AccountService struct {
	store   Store
	mail    Notifier
	sweeps  SweepEnqueuer
	issuer  *auth.TokenIssuer
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Recorder

	// decoyHash is verified against when the email is unknown, so the
	// unknown-email and wrong-password paths cost the same.
	decoyHash string

	now func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(store Store, mail Notifier, sweeps SweepEnqueuer, issuer *auth.TokenIssuer, cfg Config, logger *slog.Logger, recorder metrics.Recorder) (*AccountService, error) {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	decoy, err := auth.HashPassword(auth.NewActivationToken())
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}

	return &AccountService{
		store:     store,
		mail:      mail,
		sweeps:    sweeps,
		issuer:    issuer,
		cfg:       cfg,
		logger:    logger.With("component", "service.account"),
		metrics:   recorder,
		decoyHash: decoy,
		now:       time.Now,
	}, nil
}

// Register creates an inactive account, its activation token, and dispatches
// the activation email.
//
// User, group and token are committed in one transaction before the email is
// sent, so no email ever references a token that does not exist. If delivery
// then fails the account is kept and ErrEmailDelivery is returned together
// with the created user ("deliver-later" semantics). After a successful
// delivery a sweep of expired activation tokens is enqueued fire-and-forget.
func (s *AccountService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrInvalidPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		s.metrics.IncRegistration("email_taken")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		s.metrics.IncRegistration("error")
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.metrics.IncRegistration("error")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
	}
	token := &model.ActivationToken{
		Token:     auth.NewActivationToken(),
		ExpiresAt: s.now().UTC().Add(s.cfg.ActivationTokenTTL),
	}

	if err := s.store.CreateUser(ctx, user, token); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// Lost a race on the unique email constraint.
			s.metrics.IncRegistration("email_taken")
			return nil, ErrEmailTaken
		}
		s.metrics.IncRegistration("error")
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"activation_expires_at", token.ExpiresAt,
	)

	if err := s.mail.Send(ctx, user.Email, token.Token); err != nil {
		// Account and token stay; the registrant is told delivery failed.
		s.logger.Warn("activation email not delivered",
			"user_id", user.ID,
			"error", err,
		)
		s.metrics.IncRegistration("delivery_failed")
		return user, ErrEmailDelivery
	}

	s.sweeps.EnqueueAsync()

	s.metrics.IncRegistration("created")
	return user, nil
}

// Activate consumes an activation token, flipping the owning user to active
// and deleting the token atomically.
//
// An unknown token and an expired token return the same
// ErrInvalidOrExpiredToken; callers cannot probe which tokens ever existed.
func (s *AccountService) Activate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	if err := s.store.ConsumeActivationToken(ctx, token, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrActivationTokenNotFound) {
			s.metrics.IncActivation("invalid_token")
			return ErrInvalidOrExpiredToken
		}
		s.metrics.IncActivation("error")
		return fmt.Errorf("consume activation token: %w", err)
	}

	s.metrics.IncActivation("success")
	return nil
}

// Login verifies credentials and issues an access/refresh token pair.
//
// Unknown email and wrong password are deliberately indistinguishable: both
// return ErrInvalidCredentials, and the unknown-email path still runs a hash
// verification so response timing matches. A valid credential on an inactive
// account returns the more specific ErrNotActivated.
func (s *AccountService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn the same hashing cost as the known-email path.
			_, _ = auth.VerifyPassword(password, s.decoyHash)
			s.metrics.IncLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		s.metrics.IncLogin("error")
		return nil, fmt.Errorf("look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		// A malformed stored hash is a verification failure, not a crash.
		s.metrics.IncLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.metrics.IncLogin("not_activated")
		return nil, ErrNotActivated
	}

	access, err := s.issuer.IssueAccess(user.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		s.metrics.IncLogin("error")
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		s.metrics.IncLogin("error")
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now().UTC()
	record := &model.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		s.metrics.IncLogin("error")
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	s.logger.Info("login", "user_id", user.ID)
	s.metrics.IncLogin("success")

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenType,
	}, nil
}

// Logout revokes the session bound to the given refresh token.
// It is idempotent and never reveals whether the token was valid: an unknown
// or already-removed token is silently a no-op.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	removed, err := s.store.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		// Logged, not surfaced; logout always succeeds for the caller.
		s.logger.Error("refresh token deletion failed", "error", err)
		return nil
	}

	if removed {
		s.logger.Info("session revoked")
	}
	s.metrics.IncLogout()
	return nil
}

// Me returns the profile of an authenticated user.
func (s *AccountService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	return user, nil
}

// validateEmail applies the minimal shape check the API promises.
func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return ErrInvalidEmail
	}
	return nil
}
