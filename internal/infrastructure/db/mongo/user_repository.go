package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/user-directory/internal/core/domain"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository on a MongoDB collection.
// Documents are keyed by a generated UUID string stored in _id.
type UserRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		col: db.Collection(collectionUsers),
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// List returns every user ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	return r.find(ctx, bson.M{}, "list")
}

// ListByZipCode returns the users with an exact zip code match.
func (r *UserRepository) ListByZipCode(ctx context.Context, zip string) ([]*domain.User, error) {
	return r.find(ctx, bson.M{"zip_code": zip}, "list")
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, op string) ([]*domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.Storage("failed to "+op+" users", err)
	}
	defer cur.Close(ctx)

	users := make([]*domain.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, domain.Storage("failed to "+op+" users", err)
	}
	return users, nil
}

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.Storage("failed to get user", err)
	}
	return &u, nil
}

// Create assigns an id and timestamps and inserts the full document.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	doc := *u
	doc.ID = uuid.NewString()
	doc.CreatedAt = r.now()
	doc.UpdatedAt = doc.CreatedAt

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.Conflict("user already exists", err)
		}
		return nil, domain.Storage("failed to create user", err)
	}
	return &doc, nil
}

// Update sets only the supplied fields and returns the merged document.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	set := updateFields(upd)
	set["updated_at"] = r.now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u domain.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.Storage("failed to update user", err)
	}
	return &u, nil
}

// Delete removes the document and returns its last state.
func (r *UserRepository) Delete(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.Storage("failed to delete user", err)
	}
	return &u, nil
}

// Ping checks connectivity to the server.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the secondary indexes used by the queries above.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "zip_code", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// updateFields flattens a partial update into a $set document. A location
// update always writes every location field, clearing state.
func updateFields(upd domain.UserUpdate) bson.M {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.ZipCode != nil {
		set["zip_code"] = *upd.ZipCode
	}
	if loc := upd.Location; loc != nil {
		set["latitude"] = loc.Latitude
		set["longitude"] = loc.Longitude
		set["timezone_offset_seconds"] = loc.TimezoneOffsetSeconds
		set["timezone_offset_label"] = loc.TimezoneOffsetLabel
		set["city"] = loc.City
		set["country"] = loc.Country
		set["state"] = nil
		set["weather_description"] = loc.WeatherDescription
	}
	if upd.LocationUpdatedAt != nil {
		set["location_updated_at"] = upd.LocationUpdatedAt.UTC()
	}
	return set
}
