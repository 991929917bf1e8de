package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConflict is returned when an insert violates the username/email
	// uniqueness constraints.
	ErrConflict = errors.New("user already exists")
	// ErrStaleToken is returned by SwapRefreshToken when the stored refresh
	// token no longer matches the expected value.
	ErrStaleToken = errors.New("stored refresh token changed")
)

const pgUniqueViolation = "23505"

const userColumns = `
	id, username, email, full_name, password_hash,
	avatar_url, avatar_handle, cover_image_url, cover_handle,
	refresh_token, created_at, updated_at
`

// querier is the slice of pgxpool.Pool the store uses. Tests substitute it to
// exercise error mapping without a live database.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db querier
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash,
		&u.AvatarURL, &u.AvatarHandle, &u.CoverImageURL, &u.CoverHandle,
		&u.RefreshToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetUserByHandleOrEmail looks up a user by username or email. The
// identifier is case-normalized the same way CreateUser normalizes on write.
func (s *Store) GetUserByHandleOrEmail(ctx context.Context, identifier string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $1
	`, strings.ToLower(strings.TrimSpace(identifier)))
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u *User) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, password_hash,
			avatar_url, avatar_handle, cover_image_url, cover_handle,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id
	`,
		strings.ToLower(u.Username), strings.ToLower(u.Email), u.FullName, u.PasswordHash,
		u.AvatarURL, u.AvatarHandle, u.CoverImageURL, u.CoverHandle,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return uuid.Nil, ErrConflict
		}
		return uuid.Nil, err
	}
	return id, nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token. Used
// on login, where the new session always wins.
func (s *Store) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET refresh_token = $2, updated_at = now()
		WHERE id = $1
	`, userID, token)
	return err
}

// SwapRefreshToken replaces the stored refresh token only if it still equals
// current. A concurrent rotation or logout in between makes the update a
// no-op and returns ErrStaleToken.
func (s *Store) SwapRefreshToken(ctx context.Context, userID uuid.UUID, current, next string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
	`, userID, current, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleToken
	}
	return nil
}

// ClearRefreshToken is idempotent; clearing an already-cleared token is not
// an error.
func (s *Store) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET refresh_token = NULL, updated_at = now()
		WHERE id = $1
	`, userID)
	return err
}

func (s *Store) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, fullName, strings.ToLower(email))
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) UpdateAvatar(ctx context.Context, userID uuid.UUID, url, handle string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET avatar_url = $2, avatar_handle = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, url, handle)
	return scanUser(row)
}

func (s *Store) UpdateCoverImage(ctx context.Context, userID uuid.UUID, url, handle string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET cover_image_url = $2, cover_handle = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, url, handle)
	return scanUser(row)
}

func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, userID, passwordHash)
	return err
}
