package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// Key layout:
//
//	users        set of every user id
//	user:<id>    hash of flat string fields
const (
	indexKey   = "users"
	userPrefix = "user:"
)

// Hash field names.
const (
	fieldName              = "name"
	fieldZipCode           = "zip_code"
	fieldLatitude          = "latitude"
	fieldLongitude         = "longitude"
	fieldTZOffset          = "timezone_offset_seconds"
	fieldTZLabel           = "timezone_offset_label"
	fieldCity              = "city"
	fieldCountry           = "country"
	fieldWeather           = "weather_description"
	fieldLocationUpdatedAt = "location_updated_at"
	fieldCreatedAt         = "created_at"
	fieldUpdatedAt         = "updated_at"
)

// createScript indexes the id and writes the full hash in one step. It
// returns 0 without writing when the id is already indexed.
//
// KEYS[1] index set, KEYS[2] user hash, ARGV[1] id, ARGV[2:] field/value pairs.
var createScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
return 1
`)

// updateScript writes field/value pairs only while the hash exists. It
// returns 0 when the user has been deleted.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// UserRepository implements ports.UserRepository on Redis hashes. Writes to
// the same id are last-write-wins; a write never recreates a deleted user.
// The index set and the user hashes must share a slot, so cluster clients are
// not supported.
type UserRepository struct {
	client redis.UniversalClient
	now    func() time.Time

	// beforeWrite runs between the read and the write of Update. Nil outside tests.
	beforeWrite func(id string)
}

func NewUserRepository(client redis.UniversalClient) *UserRepository {
	return &UserRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func userKey(id string) string { return userPrefix + id }

// List returns every user ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, domain.Storage("failed to list users", err)
	}

	users := make([]*domain.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, userKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, domain.Storage("failed to list users", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// deleted between SMEMBERS and HGETALL
			continue
		}
		u, err := fromHash(ids[i], fields)
		if err != nil {
			return nil, domain.Storage("failed to list users", err)
		}
		users = append(users, u)
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// ListByZipCode filters the full listing by exact zip code.
func (r *UserRepository) ListByZipCode(ctx context.Context, zip string) ([]*domain.User, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*domain.User, 0)
	for _, u := range all {
		if u.ZipCode == zip {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, id, "get")
}

func (r *UserRepository) get(ctx context.Context, id, op string) (*domain.User, error) {
	fields, err := r.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, domain.Storage("failed to "+op+" user", err)
	}
	if len(fields) == 0 {
		return nil, domain.NotFound("user not found")
	}
	u, err := fromHash(id, fields)
	if err != nil {
		return nil, domain.Storage("failed to "+op+" user", err)
	}
	return u, nil
}

// Create assigns an id and timestamps, then registers the id in the index
// and writes the full hash atomically.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	doc := *u
	doc.ID = uuid.NewString()
	doc.CreatedAt = r.now()
	doc.UpdatedAt = doc.CreatedAt

	args := append([]any{doc.ID}, hashArgs(toHash(&doc))...)
	written, err := createScript.Run(ctx, r.client, []string{indexKey, userKey(doc.ID)}, args...).Int()
	if err != nil {
		return nil, domain.Storage("failed to create user", err)
	}
	if written == 0 {
		return nil, domain.Conflict("user already exists", nil)
	}
	return &doc, nil
}

// Update reads the current record, writes only the supplied fields, and
// returns the merged record. The write is skipped with KindNotFound when the
// user was deleted after the read.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	current, err := r.get(ctx, id, "update")
	if err != nil {
		return nil, err
	}

	merged := upd.Apply(*current)
	merged.UpdatedAt = r.now()

	values := updateHash(upd)
	values[fieldUpdatedAt] = formatTime(merged.UpdatedAt)

	if r.beforeWrite != nil {
		r.beforeWrite(id)
	}

	written, err := updateScript.Run(ctx, r.client, []string{userKey(id)}, hashArgs(values)...).Int()
	if err != nil {
		return nil, domain.Storage("failed to update user", err)
	}
	if written == 0 {
		return nil, domain.NotFound("user not found")
	}
	return &merged, nil
}

// Delete captures the record, removes it, and returns the captured snapshot.
func (r *UserRepository) Delete(ctx context.Context, id string) (*domain.User, error) {
	snapshot, err := r.get(ctx, id, "delete")
	if err != nil {
		return nil, err
	}

	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.Del(ctx, userKey(id))
		p.SRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return nil, domain.Storage("failed to delete user", err)
	}
	// a concurrent delete got there first
	if removed.Val() == 0 {
		return nil, domain.NotFound("user not found")
	}
	return snapshot, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ── flat layout mapping ───────────────────────────────────────────────────────

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// hashArgs flattens a field map into HSET field/value arguments.
func hashArgs(h map[string]any) []any {
	args := make([]any, 0, len(h)*2)
	for field, value := range h {
		args = append(args, field, value)
	}
	return args
}

func toHash(u *domain.User) map[string]any {
	h := map[string]any{
		fieldName:      u.Name,
		fieldZipCode:   u.ZipCode,
		fieldCreatedAt: formatTime(u.CreatedAt),
		fieldUpdatedAt: formatTime(u.UpdatedAt),
	}
	if u.Latitude != nil {
		h[fieldLatitude] = strconv.FormatFloat(*u.Latitude, 'f', -1, 64)
	}
	if u.Longitude != nil {
		h[fieldLongitude] = strconv.FormatFloat(*u.Longitude, 'f', -1, 64)
	}
	if u.TimezoneOffsetSeconds != nil {
		h[fieldTZOffset] = strconv.Itoa(*u.TimezoneOffsetSeconds)
	}
	if u.TimezoneOffsetLabel != "" {
		h[fieldTZLabel] = u.TimezoneOffsetLabel
	}
	if u.City != "" {
		h[fieldCity] = u.City
	}
	if u.Country != "" {
		h[fieldCountry] = u.Country
	}
	if u.WeatherDescription != "" {
		h[fieldWeather] = u.WeatherDescription
	}
	if u.LocationUpdatedAt != nil {
		h[fieldLocationUpdatedAt] = formatTime(*u.LocationUpdatedAt)
	}
	return h
}

func updateHash(upd domain.UserUpdate) map[string]any {
	h := map[string]any{}
	if upd.Name != nil {
		h[fieldName] = *upd.Name
	}
	if upd.ZipCode != nil {
		h[fieldZipCode] = *upd.ZipCode
	}
	if loc := upd.Location; loc != nil {
		h[fieldLatitude] = strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
		h[fieldLongitude] = strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
		h[fieldTZOffset] = strconv.Itoa(loc.TimezoneOffsetSeconds)
		h[fieldTZLabel] = loc.TimezoneOffsetLabel
		h[fieldCity] = loc.City
		h[fieldCountry] = loc.Country
		h[fieldWeather] = loc.WeatherDescription
	}
	if upd.LocationUpdatedAt != nil {
		h[fieldLocationUpdatedAt] = formatTime(*upd.LocationUpdatedAt)
	}
	return h
}

func fromHash(id string, h map[string]string) (*domain.User, error) {
	u := &domain.User{
		ID:                  id,
		Name:                h[fieldName],
		ZipCode:             h[fieldZipCode],
		TimezoneOffsetLabel: h[fieldTZLabel],
		City:                h[fieldCity],
		Country:             h[fieldCountry],
		WeatherDescription:  h[fieldWeather],
	}

	if v, ok := h[fieldLatitude]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("user %s: %s: %w", id, fieldLatitude, err)
		}
		u.Latitude = &f
	}
	if v, ok := h[fieldLongitude]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("user %s: %s: %w", id, fieldLongitude, err)
		}
		u.Longitude = &f
	}
	if v, ok := h[fieldTZOffset]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("user %s: %s: %w", id, fieldTZOffset, err)
		}
		u.TimezoneOffsetSeconds = &n
	}
	if v, ok := h[fieldLocationUpdatedAt]; ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("user %s: %s: %w", id, fieldLocationUpdatedAt, err)
		}
		u.LocationUpdatedAt = &ts
	}

	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, h[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("user %s: %s: %w", id, fieldCreatedAt, err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, h[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("user %s: %s: %w", id, fieldUpdatedAt, err)
	}
	return u, nil
}
