package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/api/metrics"
	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

const (
	opCreate          = "create"
	opUpdate          = "update"
	opDelete          = "delete"
	opRefreshLocation = "refresh_location"
)

// UserService orchestrates validation, enrichment, and persistence.
type UserService struct {
	repo      ports.UserRepository
	locations ports.LocationProvider
	logger    zerolog.Logger
	now       func() time.Time
}

func NewUserService(repo ports.UserRepository, locations ports.LocationProvider, logger zerolog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		locations: locations,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// ListUsersByZipCode validates the zip format before querying the store.
func (s *UserService) ListUsersByZipCode(ctx context.Context, zipCode string) ([]*domain.User, error) {
	zipCode = strings.TrimSpace(zipCode)
	if !domain.IsValidZipCode(zipCode) {
		return nil, domain.BadRequest("invalid zip code format, must be 5 digits")
	}
	return s.repo.ListByZipCode(ctx, zipCode)
}

// CreateUser enriches and stores a new user. Any enrichment failure is
// reported as a bad request; nothing is persisted in that case.
func (s *UserService) CreateUser(ctx context.Context, input ports.CreateUserInput) (user *domain.User, err error) {
	defer func() { s.record(opCreate, err) }()

	name := strings.TrimSpace(input.Name)
	zipCode := strings.TrimSpace(input.ZipCode)
	if name == "" || zipCode == "" {
		return nil, domain.BadRequest("name and zip code are required")
	}
	if !domain.IsValidZipCode(zipCode) {
		return nil, domain.BadRequest("invalid zip code format, must be 5 digits")
	}

	loc, err := s.locations.Lookup(ctx, zipCode)
	if err != nil {
		return nil, domain.Retag(err, domain.KindBadRequest)
	}

	candidate := &domain.User{Name: name, ZipCode: zipCode}
	candidate.ApplyLocation(*loc)

	created, err := s.repo.Create(ctx, candidate)
	if err != nil {
		s.logger.Error().Err(err).Str("zip_code", zipCode).Msg("failed to create user")
		return nil, err
	}

	s.logger.Info().Str("user_id", created.ID).Str("zip_code", created.ZipCode).Str("city", created.City).Msg("user created")
	return created, nil
}

// UpdateUser applies a partial update. A zip code change re-runs enrichment
// and replaces every location field in the same write.
func (s *UserService) UpdateUser(ctx context.Context, id string, input ports.UpdateUserInput) (user *domain.User, err error) {
	defer func() { s.record(opUpdate, err) }()

	if err := checkID(id); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var update domain.UserUpdate
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			update.Name = &name
		}
	}

	if input.ZipCode != nil {
		zipCode := strings.TrimSpace(*input.ZipCode)
		if zipCode != existing.ZipCode {
			if !domain.IsValidZipCode(zipCode) {
				return nil, domain.BadRequest("invalid zip code format, must be 5 digits")
			}
			loc, err := s.locations.Lookup(ctx, zipCode)
			if err != nil {
				return nil, err
			}
			now := s.now()
			update.ZipCode = &zipCode
			update.Location = loc
			update.LocationUpdatedAt = &now
		}
	}

	if update.IsEmpty() {
		return nil, domain.BadRequest("no valid updates provided")
	}

	updated, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", id).
		Bool("name_changed", update.Name != nil).
		Bool("location_changed", update.Location != nil).
		Msg("user updated")
	return updated, nil
}

// DeleteUser removes the user and returns the deleted snapshot.
func (s *UserService) DeleteUser(ctx context.Context, id string) (user *domain.User, err error) {
	defer func() { s.record(opDelete, err) }()

	if err := checkID(id); err != nil {
		return nil, err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", id).Msg("user deleted")
	return deleted, nil
}

// RefreshLocation re-runs enrichment for the stored zip code and applies the
// result unconditionally.
func (s *UserService) RefreshLocation(ctx context.Context, id string) (user *domain.User, err error) {
	defer func() { s.record(opRefreshLocation, err) }()

	if err := checkID(id); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	loc, err := s.locations.Lookup(ctx, existing.ZipCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	refreshed, err := s.repo.Update(ctx, id, domain.UserUpdate{Location: loc, LocationUpdatedAt: &now})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", id).Str("zip_code", existing.ZipCode).Msg("user location refreshed")
	return refreshed, nil
}

func (s *UserService) record(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	metrics.UserOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// checkID rejects identifiers that could never have been issued by the store.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.InvalidID(id)
	}
	return nil
}
