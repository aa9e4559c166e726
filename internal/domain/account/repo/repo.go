package repo

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/google/uuid"
)

// UserRepo is the credential store. Lookups return errors.ErrNotFound when nothing matches.
type UserRepo interface {
	// FindByIdentifier matches on username OR email; empty arguments are ignored.
	FindByIdentifier(ctx context.Context, username, email string) (model.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	CreateUser(ctx context.Context, u model.User) (model.User, error)

	// UpdatePasswordHash touches only the password hash column.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	// SetRefreshToken overwrites the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error

	// SwapRefreshToken replaces expected with next only if expected is still stored.
	SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) (bool, error)
}

// ProfileCache holds sanitized users for the request authentication path.
// Get returns errors.ErrNotFound on a miss.
type ProfileCache interface {
	Get(ctx context.Context, id uuid.UUID) (model.PublicUser, error)
	Set(ctx context.Context, u model.PublicUser) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Hasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hash string) (bool, error)
}

type Uploader interface {
	// Upload pushes the local file to media storage and returns its public URL.
	Upload(ctx context.Context, localPath string) (string, error)
	// Remove deletes an object previously returned by Upload.
	Remove(ctx context.Context, url string) error
}
