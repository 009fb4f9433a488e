package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/99minutos/user-directory/internal/core/domain"
)

func TestHashRoundTrip_EnrichedUser(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	u := &domain.User{Name: "John Doe", ZipCode: "12345", CreatedAt: created, UpdatedAt: created}
	u.ApplyLocation(domain.Location{
		Latitude: 40.7128, Longitude: -74.006,
		TimezoneOffsetSeconds: -18000, TimezoneOffsetLabel: "UTC-5",
		City: "New York", Country: "US", WeatherDescription: "clear sky",
	})

	flat := make(map[string]string)
	for k, v := range toHash(u) {
		flat[k] = v.(string)
	}

	got, err := fromHash("id-1", flat)
	if err != nil {
		t.Fatalf("fromHash: %v", err)
	}
	if got.ID != "id-1" || got.Name != "John Doe" || got.ZipCode != "12345" {
		t.Errorf("identity fields lost: %+v", got)
	}
	if *got.Latitude != 40.7128 || *got.Longitude != -74.006 || *got.TimezoneOffsetSeconds != -18000 {
		t.Errorf("numeric fields lost: %+v", got)
	}
	if got.City != "New York" || got.TimezoneOffsetLabel != "UTC-5" || got.WeatherDescription != "clear sky" {
		t.Errorf("string fields lost: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(created) {
		t.Errorf("timestamps lost: %v %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.State != nil {
		t.Error("state must be nil")
	}
}

func TestFromHash_UnenrichedUserHasNoLocation(t *testing.T) {
	got, err := fromHash("id-2", map[string]string{
		fieldName:      "Jane",
		fieldZipCode:   "90210",
		fieldCreatedAt: "2024-05-01T12:00:00Z",
		fieldUpdatedAt: "2024-05-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("fromHash: %v", err)
	}
	if got.Latitude != nil || got.Longitude != nil || got.TimezoneOffsetSeconds != nil {
		t.Errorf("expected absent location, got %+v", got)
	}
}

func TestFromHash_CorruptField(t *testing.T) {
	_, err := fromHash("id-3", map[string]string{
		fieldLatitude:  "north",
		fieldCreatedAt: "2024-05-01T12:00:00Z",
		fieldUpdatedAt: "2024-05-01T12:00:00Z",
	})
	if err == nil {
		t.Fatal("expected error for corrupt latitude")
	}
}

func TestUpdateHash_OnlySuppliedFields(t *testing.T) {
	name := "Jane"
	h := updateHash(domain.UserUpdate{Name: &name})
	if len(h) != 1 || h[fieldName] != "Jane" {
		t.Fatalf("unexpected update hash: %v", h)
	}

	h = updateHash(domain.UserUpdate{Location: &domain.Location{City: "Los Angeles"}})
	for _, f := range []string{fieldLatitude, fieldLongitude, fieldTZOffset, fieldTZLabel, fieldCity, fieldCountry, fieldWeather} {
		if _, ok := h[f]; !ok {
			t.Errorf("location update missing %s", f)
		}
	}
	if _, ok := h[fieldName]; ok {
		t.Error("name must not be part of a location-only update")
	}
}

func newTestRepository(t *testing.T) (*UserRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewUserRepository(client)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo, srv
}

func createUser(t *testing.T, repo *UserRepository, name, zip string) *domain.User {
	t.Helper()
	u, err := repo.Create(context.Background(), &domain.User{Name: name, ZipCode: zip})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return u
}

func TestUserRepository_ListEmptyStore(t *testing.T) {
	repo, _ := newTestRepository(t)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}
}

func TestUserRepository_CreateIndexesAndWritesHash(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()

	in := &domain.User{Name: "John Doe", ZipCode: "12345"}
	in.ApplyLocation(domain.Location{Latitude: 40.7128, Longitude: -74.006, City: "New York", Country: "US"})

	created, err := repo.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("id and timestamps not assigned: %+v", created)
	}

	member, err := srv.IsMember(indexKey, created.ID)
	if err != nil || !member {
		t.Fatalf("id not indexed: member=%v err=%v", member, err)
	}
	if got := srv.HGet(userKey(created.ID), fieldCity); got != "New York" {
		t.Errorf("city in hash = %q", got)
	}

	got, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != "John Doe" || got.Latitude == nil || *got.Latitude != 40.7128 {
		t.Errorf("stored user differs: %+v", got)
	}
}

func TestUserRepository_ListOrdersByCreation(t *testing.T) {
	repo, _ := newTestRepository(t)
	names := []string{"Alice", "Bob", "Carol"}
	for _, n := range names {
		createUser(t, repo, n, "12345")
	}

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != len(names) {
		t.Fatalf("expected %d users, got %d", len(names), len(users))
	}
	for i, u := range users {
		if u.Name != names[i] {
			t.Errorf("position %d: got %s, want %s", i, u.Name, names[i])
		}
	}
}

func TestUserRepository_ListSkipsIdsWithoutHash(t *testing.T) {
	repo, srv := newTestRepository(t)
	kept := createUser(t, repo, "John Doe", "12345")
	if _, err := srv.SAdd(indexKey, "gone"); err != nil {
		t.Fatal(err)
	}

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 || users[0].ID != kept.ID {
		t.Fatalf("expected only %s, got %+v", kept.ID, users)
	}
}

func TestUserRepository_ListByZipCode(t *testing.T) {
	repo, _ := newTestRepository(t)
	createUser(t, repo, "John Doe", "12345")
	createUser(t, repo, "Jane Roe", "90210")
	createUser(t, repo, "Jim Poe", "12345")

	users, err := repo.ListByZipCode(context.Background(), "12345")
	if err != nil {
		t.Fatalf("ListByZipCode: %v", err)
	}
	if len(users) != 2 || users[0].Name != "John Doe" || users[1].Name != "Jim Poe" {
		t.Fatalf("unexpected match set: %+v", users)
	}

	none, err := repo.ListByZipCode(context.Background(), "00000")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty result, got %#v err=%v", none, err)
	}
}

func TestUserRepository_FindByIDMissing(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.FindByID(context.Background(), "6f1c2b1e-4a8e-4c7d-9f2a-1b2c3d4e5f60")
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserRepository_UpdateMergesSuppliedFields(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()
	created := createUser(t, repo, "John Doe", "12345")

	name := "Jane Doe"
	updated, err := repo.Update(ctx, created.ID, domain.UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Jane Doe" || updated.ZipCode != "12345" {
		t.Errorf("merge lost fields: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("timestamps: created %v -> %v, updated %v -> %v",
			created.CreatedAt, updated.CreatedAt, created.UpdatedAt, updated.UpdatedAt)
	}
	if got := srv.HGet(userKey(created.ID), fieldName); got != "Jane Doe" {
		t.Errorf("name in hash = %q", got)
	}

	stored, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Name != "Jane Doe" || !stored.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Errorf("stored user differs from returned one: %+v", stored)
	}
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	repo, srv := newTestRepository(t)
	id := "6f1c2b1e-4a8e-4c7d-9f2a-1b2c3d4e5f60"

	name := "Jane"
	_, err := repo.Update(context.Background(), id, domain.UserUpdate{Name: &name})
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if srv.Exists(userKey(id)) {
		t.Fatal("update must not create a hash")
	}
}

func TestUserRepository_UpdateAfterConcurrentDeleteDoesNotRecreate(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()
	created := createUser(t, repo, "John Doe", "12345")

	repo.beforeWrite = func(id string) {
		if _, err := repo.Delete(ctx, id); err != nil {
			t.Errorf("Delete: %v", err)
		}
	}

	name := "Jane"
	_, err := repo.Update(ctx, created.ID, domain.UserUpdate{Name: &name})
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if srv.Exists(userKey(created.ID)) {
		t.Fatal("deleted user was recreated by the update")
	}

	repo.beforeWrite = nil
	if _, err := repo.FindByID(ctx, created.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUserRepository_DeleteReturnsSnapshotAndRemoves(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()
	keep := createUser(t, repo, "Jane Roe", "90210")
	gone := createUser(t, repo, "John Doe", "12345")

	snapshot, err := repo.Delete(ctx, gone.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if snapshot.ID != gone.ID || snapshot.Name != "John Doe" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}

	if srv.Exists(userKey(gone.ID)) {
		t.Error("hash still present")
	}
	if member, _ := srv.IsMember(indexKey, gone.ID); member {
		t.Error("id still indexed")
	}
	if member, _ := srv.IsMember(indexKey, keep.ID); !member {
		t.Error("unrelated id dropped from index")
	}

	if _, err := repo.Delete(ctx, gone.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func TestUserRepository_Ping(t *testing.T) {
	repo, _ := newTestRepository(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
