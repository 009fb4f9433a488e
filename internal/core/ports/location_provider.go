package ports

import (
	"context"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// LocationProvider resolves a zip code to location data.
type LocationProvider interface {
	Lookup(ctx context.Context, zipCode string) (*domain.Location, error)
}
