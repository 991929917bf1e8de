package storage

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. PasswordHash and RefreshToken never leave the
// storage/session layers; response types in handlers omit them.
type User struct {
	ID            uuid.UUID
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	AvatarHandle  string
	CoverImageURL string
	CoverHandle   string
	RefreshToken  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
