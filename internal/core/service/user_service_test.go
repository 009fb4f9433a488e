package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	createErr error // if set, Create returns this error
	updates   []domain.UserUpdate
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	return &clone
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *stubUserRepo) ListByZipCode(ctx context.Context, zip string) ([]*domain.User, error) {
	all, _ := r.List(ctx)
	out := make([]*domain.User, 0)
	for _, u := range all {
		if u.ZipCode == zip {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := cloneUser(u)
	clone.ID = uuid.NewString()
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.users[clone.ID] = clone
	return cloneUser(clone), nil
}

func (r *stubUserRepo) Update(_ context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	r.updates = append(r.updates, upd)
	merged := upd.Apply(*u)
	merged.UpdatedAt = time.Now().UTC()
	r.users[id] = &merged
	return cloneUser(&merged), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NotFound("user not found")
	}
	delete(r.users, id)
	return u, nil
}

func (r *stubUserRepo) Ping(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Stub location provider
// ---------------------------------------------------------------------------

type stubLocations struct {
	mu       sync.Mutex
	lookupFn func(ctx context.Context, zip string) (*domain.Location, error)
	calls    []string
}

func (p *stubLocations) Lookup(ctx context.Context, zip string) (*domain.Location, error) {
	p.mu.Lock()
	p.calls = append(p.calls, zip)
	p.mu.Unlock()
	return p.lookupFn(ctx, zip)
}

func (p *stubLocations) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func fixedLocations(byZip map[string]domain.Location) *stubLocations {
	return &stubLocations{lookupFn: func(_ context.Context, zip string) (*domain.Location, error) {
		loc, ok := byZip[zip]
		if !ok {
			return nil, domain.BadRequest("zip code not found")
		}
		return &loc, nil
	}}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

var (
	newYork = domain.Location{
		Latitude: 40.7128, Longitude: -74.0060,
		TimezoneOffsetSeconds: -18000, TimezoneOffsetLabel: "UTC-5",
		City: "New York", Country: "US", WeatherDescription: "clear sky",
	}
	losAngeles = domain.Location{
		Latitude: 34.0522, Longitude: -118.2437,
		TimezoneOffsetSeconds: -28800, TimezoneOffsetLabel: "UTC-8",
		City: "Los Angeles", Country: "US", WeatherDescription: "haze",
	}
)

func newTestService() (*UserService, *stubUserRepo, *stubLocations) {
	repo := newStubUserRepo()
	locs := fixedLocations(map[string]domain.Location{"12345": newYork, "90210": losAngeles})
	return NewUserService(repo, locs, discardLogger), repo, locs
}

func mustCreate(t *testing.T, svc *UserService) *domain.User {
	t.Helper()
	u, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "John Doe", ZipCode: "12345"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// CreateUser
// ---------------------------------------------------------------------------

func TestUserService_Create_Success(t *testing.T) {
	svc, repo, _ := newTestService()

	u, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "  John Doe ", ZipCode: " 12345"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if u.Name != "John Doe" || u.ZipCode != "12345" {
		t.Errorf("input not trimmed: %q %q", u.Name, u.ZipCode)
	}
	if *u.Latitude != 40.7128 || *u.Longitude != -74.006 {
		t.Errorf("unexpected coordinates: %v %v", *u.Latitude, *u.Longitude)
	}
	if u.TimezoneOffsetLabel != "UTC-5" || u.City != "New York" {
		t.Errorf("unexpected location: %q %q", u.TimezoneOffsetLabel, u.City)
	}
	if u.State != nil {
		t.Error("state must be nil")
	}
	if len(repo.users) != 1 {
		t.Errorf("expected 1 stored user, got %d", len(repo.users))
	}
}

func TestUserService_Create_MissingFields(t *testing.T) {
	svc, _, locs := newTestService()

	for _, in := range []ports.CreateUserInput{{Name: "John"}, {ZipCode: "12345"}, {Name: "   ", ZipCode: "12345"}} {
		_, err := svc.CreateUser(context.Background(), in)
		if !domain.IsKind(err, domain.KindBadRequest) {
			t.Fatalf("expected bad request for %+v, got %v", in, err)
		}
		if err.Error() != "name and zip code are required" {
			t.Errorf("unexpected message: %q", err.Error())
		}
	}
	if locs.callCount() != 0 {
		t.Error("provider must not be called for missing fields")
	}
}

func TestUserService_Create_InvalidZip(t *testing.T) {
	svc, _, locs := newTestService()

	_, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "John Doe", ZipCode: "1234a"})
	if !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if locs.callCount() != 0 {
		t.Error("provider must not be called for an invalid zip")
	}
}

func TestUserService_Create_EnrichmentErrorsBecomeBadRequest(t *testing.T) {
	for _, upstream := range []error{
		domain.Upstream("rate limit exceeded, retry later", nil),
		domain.Internal("invalid provider credentials", nil),
		domain.Timeout("request timed out", context.DeadlineExceeded),
		domain.BadRequest("zip code not found"),
	} {
		repo := newStubUserRepo()
		locs := &stubLocations{lookupFn: func(context.Context, string) (*domain.Location, error) { return nil, upstream }}
		svc := NewUserService(repo, locs, discardLogger)

		_, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "John Doe", ZipCode: "12345"})
		if !domain.IsKind(err, domain.KindBadRequest) {
			t.Errorf("expected %v to be re-tagged as bad request, got %s", upstream, domain.KindOf(err))
		}
		if !strings.HasPrefix(err.Error(), strings.SplitN(upstream.Error(), ":", 2)[0]) {
			t.Errorf("message lost: %q", err.Error())
		}
		if len(repo.users) != 0 {
			t.Error("no record may be persisted when enrichment fails")
		}
	}
}

func TestUserService_Create_StoreErrorStaysServerSide(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.createErr = domain.Storage("failed to create user", errors.New("connection reset"))

	_, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "John Doe", ZipCode: "12345"})
	if !domain.IsKind(err, domain.KindStorage) {
		t.Fatalf("expected storage kind, got %v", err)
	}
}

func TestUserService_Create_Concurrent(t *testing.T) {
	svc, _, _ := newTestService()
	const n = 25

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("User %d", i)
			if _, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: name, ZipCode: "12345"}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != n {
		t.Fatalf("expected %d users, got %d", n, len(users))
	}
}

// ---------------------------------------------------------------------------
// UpdateUser
// ---------------------------------------------------------------------------

func TestUserService_Update_ZipChangeReplacesLocation(t *testing.T) {
	svc, _, locs := newTestService()
	u := mustCreate(t, svc)

	updated, err := svc.UpdateUser(context.Background(), u.ID, ports.UpdateUserInput{ZipCode: strPtr("90210")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ZipCode != "90210" {
		t.Errorf("zip not updated: %q", updated.ZipCode)
	}
	if *updated.Latitude != 34.0522 || *updated.Longitude != -118.2437 || updated.City != "Los Angeles" {
		t.Errorf("location not replaced together: %+v", updated)
	}
	if updated.TimezoneOffsetLabel != "UTC-8" || *updated.TimezoneOffsetSeconds != -28800 {
		t.Errorf("timezone not replaced: %+v", updated)
	}
	if updated.LocationUpdatedAt == nil {
		t.Error("expected locationUpdatedAt to be stamped")
	}
	if locs.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", locs.callCount())
	}
}

func TestUserService_Update_NameOnlySkipsEnrichment(t *testing.T) {
	svc, _, locs := newTestService()
	u := mustCreate(t, svc)

	updated, err := svc.UpdateUser(context.Background(), u.ID, ports.UpdateUserInput{Name: strPtr(" Jane Doe ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Jane Doe" {
		t.Errorf("name not updated: %q", updated.Name)
	}
	if *updated.Latitude != 40.7128 || updated.City != "New York" {
		t.Errorf("location must be untouched: %+v", updated)
	}
	if locs.callCount() != 1 {
		t.Errorf("provider must only be called by create, got %d calls", locs.callCount())
	}
}

func TestUserService_Update_UnchangedZipIsNoValidUpdate(t *testing.T) {
	svc, repo, locs := newTestService()
	u := mustCreate(t, svc)

	_, err := svc.UpdateUser(context.Background(), u.ID, ports.UpdateUserInput{ZipCode: strPtr("12345")})
	if !domain.IsKind(err, domain.KindBadRequest) || err.Error() != "no valid updates provided" {
		t.Fatalf("expected no valid updates error, got %v", err)
	}
	if len(repo.updates) != 0 {
		t.Error("no write may happen for an empty update")
	}
	if locs.callCount() != 1 {
		t.Error("unchanged zip must not trigger enrichment")
	}
}

func TestUserService_Update_InvalidZip(t *testing.T) {
	svc, _, _ := newTestService()
	u := mustCreate(t, svc)

	_, err := svc.UpdateUser(context.Background(), u.ID, ports.UpdateUserInput{ZipCode: strPtr("abcde")})
	if !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestUserService_Update_EnrichmentFailureWritesNothing(t *testing.T) {
	svc, repo, _ := newTestService()
	u := mustCreate(t, svc)

	_, err := svc.UpdateUser(context.Background(), u.ID, ports.UpdateUserInput{Name: strPtr("Jane"), ZipCode: strPtr("99999")})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.updates) != 0 {
		t.Error("a failed enrichment must not leave a partial write")
	}
	stored, _ := repo.FindByID(context.Background(), u.ID)
	if stored.Name != "John Doe" || stored.ZipCode != "12345" {
		t.Errorf("record changed: %+v", stored)
	}
}

func TestUserService_Update_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.UpdateUser(context.Background(), uuid.NewString(), ports.UpdateUserInput{Name: strPtr("Jane")})
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// DeleteUser / GetUser
// ---------------------------------------------------------------------------

func TestUserService_Delete_ReturnsSnapshot(t *testing.T) {
	svc, repo, _ := newTestService()
	u := mustCreate(t, svc)

	deleted, err := svc.DeleteUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ID != u.ID || deleted.Name != u.Name || *deleted.Latitude != *u.Latitude {
		t.Errorf("snapshot mismatch: %+v vs %+v", deleted, u)
	}
	if len(repo.users) != 0 {
		t.Error("user not removed")
	}

	if _, err := svc.DeleteUser(context.Background(), u.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestUserService_MalformedID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.GetUser(ctx, "not-an-id"); !domain.IsKind(err, domain.KindInvalidID) {
		t.Errorf("get: expected invalid id, got %v", err)
	}
	if _, err := svc.DeleteUser(ctx, "not-an-id"); !domain.IsKind(err, domain.KindInvalidID) {
		t.Errorf("delete: expected invalid id, got %v", err)
	}
	if _, err := svc.UpdateUser(ctx, "not-an-id", ports.UpdateUserInput{Name: strPtr("x")}); !domain.IsKind(err, domain.KindInvalidID) {
		t.Errorf("update: expected invalid id, got %v", err)
	}
	if _, err := svc.RefreshLocation(ctx, "not-an-id"); !domain.IsKind(err, domain.KindInvalidID) {
		t.Errorf("refresh: expected invalid id, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// RefreshLocation / ListUsersByZipCode
// ---------------------------------------------------------------------------

func TestUserService_RefreshLocation_UsesStoredZip(t *testing.T) {
	repo := newStubUserRepo()
	current := newYork
	locs := &stubLocations{lookupFn: func(_ context.Context, zip string) (*domain.Location, error) {
		loc := current
		return &loc, nil
	}}
	svc := NewUserService(repo, locs, discardLogger)
	u := mustCreate(t, svc)

	current.WeatherDescription = "light rain"
	current.Latitude = 40.7

	refreshed, err := svc.RefreshLocation(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locs.calls[1] != "12345" {
		t.Errorf("refresh must use the stored zip, used %q", locs.calls[1])
	}
	if refreshed.WeatherDescription != "light rain" || *refreshed.Latitude != 40.7 {
		t.Errorf("location not applied: %+v", refreshed)
	}
	if refreshed.LocationUpdatedAt == nil {
		t.Error("expected locationUpdatedAt")
	}
}

func TestUserService_ListByZip(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc)
	if _, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Name: "Amy Pond", ZipCode: "90210"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	users, err := svc.ListUsersByZipCode(context.Background(), "90210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Amy Pond" {
		t.Fatalf("unexpected users: %+v", users)
	}

	if _, err := svc.ListUsersByZipCode(context.Background(), "9021"); !domain.IsKind(err, domain.KindBadRequest) {
		t.Fatalf("expected bad request for malformed zip, got %v", err)
	}
}
