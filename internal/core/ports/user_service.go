package ports

import (
	"context"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// CreateUserInput is the DTO passed from the transport layer to CreateUser.
type CreateUserInput struct {
	Name    string
	ZipCode string
}

// UpdateUserInput carries a partial update; nil fields were absent from the request.
type UpdateUserInput struct {
	Name    *string
	ZipCode *string
}

// UserService defines the use-case operations of the directory.
type UserService interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsersByZipCode(ctx context.Context, zipCode string) ([]*domain.User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) (*domain.User, error)
	RefreshLocation(ctx context.Context, id string) (*domain.User, error)
}
