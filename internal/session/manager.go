// Package session owns the access/refresh token pair lifecycle: issuance on
// login, rotation on refresh, revocation on logout, and access verification.
// The single stored refresh token per user is the only state it mutates.
package session

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/security"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	GetUserByHandleOrEmail(ctx context.Context, identifier string) (*storage.User, error)
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

type Hasher interface {
	Compare(password, encoded string) (bool, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Manager struct {
	store  Store
	codec  *security.Codec
	hasher Hasher
	clock  Clock
	logger *slog.Logger
}

func NewManager(store Store, codec *security.Codec, hasher Hasher, clock Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Manager{
		store:  store,
		codec:  codec,
		hasher: hasher,
		clock:  clock,
		logger: logger,
	}
}

// Login authenticates by username or email and, on success, issues a fresh
// token pair, overwriting any previously stored refresh token.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*TokenPair, *storage.User, error) {
	user, err := m.store.GetUserByHandleOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, nil, apperr.Wrap(apperr.CodePersistenceError, "user lookup failed", err)
	}

	ok, err := m.hasher.Compare(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil, apperr.New(apperr.CodeInvalidCredentials, "invalid credentials")
	}

	pair, err := m.IssueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, sanitize(user), nil
}

// IssueTokens signs a new access/refresh pair for user and persists the
// refresh token. If persistence fails the pair is discarded; no caller ever
// sees tokens that were not stored.
func (m *Manager) IssueTokens(ctx context.Context, user *storage.User) (*TokenPair, error) {
	pair, err := m.signPair(user)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, apperr.Wrap(apperr.CodePersistenceError, "persist refresh token failed", err)
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must verify, resolve to an existing user, and equal the stored
// value; the swap is compare-and-swap so concurrent rotations of the same
// token produce exactly one winner.
func (m *Manager) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := m.codec.Verify(security.KindRefresh, presented, m.clock.Now())
	if err != nil {
		return nil, unauthorized(err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, unauthorized(err)
	}

	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, unauthorized(err)
		}
		return nil, apperr.Wrap(apperr.CodePersistenceError, "user lookup failed", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return nil, unauthorized(errors.New("refresh token superseded"))
	}

	pair, err := m.signPair(user)
	if err != nil {
		return nil, err
	}

	if err := m.store.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrStaleToken) {
			return nil, unauthorized(err)
		}
		return nil, apperr.Wrap(apperr.CodePersistenceError, "rotate refresh token failed", err)
	}
	return pair, nil
}

// VerifyAccess validates an access token and resolves the identity it names,
// stripped of credential fields. Every verification failure collapses to
// Unauthorized so callers cannot distinguish which check failed.
func (m *Manager) VerifyAccess(ctx context.Context, token string) (*storage.User, error) {
	claims, err := m.codec.Verify(security.KindAccess, token, m.clock.Now())
	if err != nil {
		return nil, unauthorized(err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, unauthorized(err)
	}

	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, unauthorized(err)
		}
		return nil, apperr.Wrap(apperr.CodePersistenceError, "user lookup failed", err)
	}
	return sanitize(user), nil
}

// Logout clears the stored refresh token. Logging out twice is fine.
func (m *Manager) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil {
		return apperr.Wrap(apperr.CodePersistenceError, "clear refresh token failed", err)
	}
	return nil
}

func (m *Manager) signPair(user *storage.User) (*TokenPair, error) {
	now := m.clock.Now()
	sub := security.Subject{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	}

	access, err := m.codec.Issue(security.KindAccess, sub, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "sign access token failed", err)
	}
	refresh, err := m.codec.Issue(security.KindRefresh, sub, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "sign refresh token failed", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func sanitize(u *storage.User) *storage.User {
	clean := *u
	clean.PasswordHash = ""
	clean.RefreshToken = nil
	return &clean
}

func unauthorized(cause error) error {
	return apperr.Wrap(apperr.CodeUnauthorized, "unauthorized", cause)
}
