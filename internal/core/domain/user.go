package domain

import "time"

// Location is the enrichment result for a zip code.
type Location struct {
	Latitude              float64
	Longitude             float64
	TimezoneOffsetSeconds int
	TimezoneOffsetLabel   string
	City                  string
	Country               string
	// State is never supplied by the provider and stays nil.
	State              *string
	WeatherDescription string
}

// User is a directory entry. Location fields are pointers because they are
// only present once enrichment has succeeded.
type User struct {
	ID                    string     `json:"id"                              bson:"_id"`
	Name                  string     `json:"name"                            bson:"name"`
	ZipCode               string     `json:"zipCode"                         bson:"zip_code"`
	Latitude              *float64   `json:"latitude,omitempty"              bson:"latitude,omitempty"`
	Longitude             *float64   `json:"longitude,omitempty"             bson:"longitude,omitempty"`
	TimezoneOffsetSeconds *int       `json:"timezoneOffsetSeconds,omitempty" bson:"timezone_offset_seconds,omitempty"`
	TimezoneOffsetLabel   string     `json:"timezoneOffsetLabel,omitempty"   bson:"timezone_offset_label,omitempty"`
	City                  string     `json:"city,omitempty"                  bson:"city,omitempty"`
	State                 *string    `json:"state"                           bson:"state"`
	Country               string     `json:"country,omitempty"               bson:"country,omitempty"`
	WeatherDescription    string     `json:"weatherDescription,omitempty"    bson:"weather_description,omitempty"`
	LocationUpdatedAt     *time.Time `json:"locationUpdatedAt,omitempty"     bson:"location_updated_at,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"                       bson:"created_at"`
	UpdatedAt             time.Time  `json:"updatedAt"                       bson:"updated_at"`
}

// ApplyLocation overwrites every location field of u with loc.
func (u *User) ApplyLocation(loc Location) {
	lat, lon, tz := loc.Latitude, loc.Longitude, loc.TimezoneOffsetSeconds
	u.Latitude = &lat
	u.Longitude = &lon
	u.TimezoneOffsetSeconds = &tz
	u.TimezoneOffsetLabel = loc.TimezoneOffsetLabel
	u.City = loc.City
	u.Country = loc.Country
	u.State = nil
	u.WeatherDescription = loc.WeatherDescription
}

// UserUpdate is a flat partial update. Nil fields are left untouched by the
// store; Location, when set, replaces all location fields in the same write.
type UserUpdate struct {
	Name              *string
	ZipCode           *string
	Location          *Location
	LocationUpdatedAt *time.Time
}

// IsEmpty reports whether the update carries no fields.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.ZipCode == nil && u.Location == nil
}

// Apply merges the update into a copy of current. UpdatedAt is left to the caller.
func (u UserUpdate) Apply(current User) User {
	if u.Name != nil {
		current.Name = *u.Name
	}
	if u.ZipCode != nil {
		current.ZipCode = *u.ZipCode
	}
	if u.Location != nil {
		current.ApplyLocation(*u.Location)
	}
	if u.LocationUpdatedAt != nil {
		ts := *u.LocationUpdatedAt
		current.LocationUpdatedAt = &ts
	}
	return current
}
