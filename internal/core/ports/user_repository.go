package ports

import (
	"context"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// UserRepository is the record store adapter. Implementations assign ids,
// stamp timestamps, and wrap backend failures in KindStorage errors.
type UserRepository interface {
	// List returns every user ordered by creation time; never nil on success.
	List(ctx context.Context) ([]*domain.User, error)
	// ListByZipCode returns the users whose zip code equals zip exactly.
	ListByZipCode(ctx context.Context, zip string) ([]*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create generates the id and timestamps and returns the stored record.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// Update merges the supplied fields, refreshes UpdatedAt, and returns the
	// merged record. Missing ids yield a KindNotFound error.
	Update(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error)
	// Delete removes the record and returns its last state.
	Delete(ctx context.Context, id string) (*domain.User, error)
	Ping(ctx context.Context) error
}
