// Package registration implements user sign-up as an all-or-nothing
// workflow: validate, check uniqueness, upload profile assets, persist, then
// re-read. Any failure after an upload compensates by deleting this
// attempt's remote assets before the original error is surfaced.
package registration

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/assets"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	GetUserByHandleOrEmail(ctx context.Context, identifier string) (*storage.User, error)
	CreateUser(ctx context.Context, u *storage.User) (uuid.UUID, error)
}

type Hasher interface {
	Hash(password string) (string, error)
}

type Uploader interface {
	UploadAll(ctx context.Context, uploads []assets.Upload) ([]assets.Asset, error)
	Rollback(ctx context.Context, uploaded []assets.Asset) error
}

type Input struct {
	Username       string
	Email          string
	FullName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type Workflow struct {
	store    Store
	hasher   Hasher
	uploader Uploader
	logger   *slog.Logger
}

func NewWorkflow(store Store, hasher Hasher, uploader Uploader, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:    store,
		hasher:   hasher,
		uploader: uploader,
		logger:   logger,
	}
}

// Register runs one registration attempt. The returned user has credential
// fields stripped.
func (w *Workflow) Register(ctx context.Context, in Input) (*storage.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if in.Username == "" || in.Email == "" || in.FullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "all fields are required")
	}

	for _, identifier := range []string{in.Username, in.Email} {
		_, err := w.store.GetUserByHandleOrEmail(ctx, identifier)
		switch {
		case err == nil:
			return nil, apperr.New(apperr.CodeAlreadyExists, "user already exists")
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return nil, apperr.Wrap(apperr.CodePersistenceError, "uniqueness check failed", err)
		}
	}

	passwordHash, err := w.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "hash password failed", err)
	}

	uploaded, err := w.uploader.UploadAll(ctx, []assets.Upload{
		{Role: assets.RoleAvatar, Path: in.AvatarPath, Required: true},
		{Role: assets.RoleCoverImage, Path: in.CoverImagePath},
	})
	if err != nil {
		w.compensate(ctx, uploaded)
		return nil, err
	}
	byRole := assets.ByRole(uploaded)
	avatar := byRole[assets.RoleAvatar]
	cover := byRole[assets.RoleCoverImage]

	user := &storage.User{
		Username:      strings.ToLower(in.Username),
		Email:         strings.ToLower(in.Email),
		FullName:      in.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatar.URL,
		AvatarHandle:  avatar.DeleteHandle,
		CoverImageURL: cover.URL,
		CoverHandle:   cover.DeleteHandle,
	}

	id, err := w.store.CreateUser(ctx, user)
	if err != nil {
		w.compensate(ctx, uploaded)
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperr.Wrap(apperr.CodeAlreadyExists, "user already exists", err)
		}
		return nil, apperr.Wrap(apperr.CodePersistenceError, "create user failed", err)
	}

	// Read-after-write check: a record we cannot read back is treated as a
	// failed registration, not a success.
	created, err := w.store.GetUserByID(ctx, id)
	if err != nil {
		w.compensate(ctx, uploaded)
		return nil, apperr.Wrap(apperr.CodeIntegrityError, "user created but unreadable", err)
	}

	clean := *created
	clean.PasswordHash = ""
	clean.RefreshToken = nil
	return &clean, nil
}

// compensate deletes this attempt's uploads. Failures are recorded only; the
// caller's original error stays the primary one.
func (w *Workflow) compensate(ctx context.Context, uploaded []assets.Asset) {
	if len(uploaded) == 0 {
		return
	}
	if err := w.uploader.Rollback(ctx, uploaded); err != nil {
		w.logger.Error("registration compensation incomplete", "error", err)
	}
}
