package model

import "time"

// DefaultDurationMinutes is used when a session does not declare its length.
const DefaultDurationMinutes = 60

// Well-known rooms of the venue. The dataset may use others; filtering
// compares room strings exactly.
const (
	RoomAuditorio   = "Auditorio"
	RoomPolivalente = "Polivalente"
	RoomGeneral     = "General"
)

// Session is one scheduled talk, break or event within a day.
type Session struct {
	// ID is a stable synthetic identifier assigned at catalog load time.
	// Entries persisted before ids existed may carry an empty ID.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Time     string   `json:"time" yaml:"time" validate:"required"`
	Title    string   `json:"title" yaml:"title" validate:"required"`
	Speakers []string `json:"speakers,omitempty" yaml:"speakers,omitempty"`
	Entity   string   `json:"entity,omitempty" yaml:"entity,omitempty"`
	Room     string   `json:"room" yaml:"room" validate:"required"`

	// DurationMinutes is optional; zero means DefaultDurationMinutes.
	DurationMinutes int `json:"durationMinutes,omitempty" yaml:"durationMinutes,omitempty" validate:"gte=0"`
}

// Duration returns the session length, applying the default when unset.
func (s Session) Duration() time.Duration {
	if s.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(s.DurationMinutes) * time.Minute
}

// SameAs reports whether two sessions denote the same scheduled slot.
// Synthetic ids win when both sides have one; otherwise the legacy
// (title, time) pair is compared exactly.
func (s Session) SameAs(o Session) bool {
	if s.ID != "" && o.ID != "" {
		return s.ID == o.ID
	}
	return s.Title == o.Title && s.Time == o.Time
}

// Day is one day of the program.
type Day struct {
	Label    string    `json:"label" yaml:"label" validate:"required"`
	Date     string    `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	Sessions []Session `json:"sessions" yaml:"sessions" validate:"dive"`
}

// FavoriteEntry is a favorited session stamped with the date of the day
// it belongs to, so favorites can be grouped without the catalog.
type FavoriteEntry struct {
	Session `yaml:",inline"`
	Day     string `json:"day" yaml:"day"`
}

// FavoritesList is the ordered favorites of a single user.
type FavoritesList []FavoriteEntry

// FavoritesDocument is the persisted shape of a user's favorites.
type FavoritesDocument struct {
	Sessions  FavoritesList `json:"sessions"`
	UpdatedAt time.Time     `json:"updated_at"`
}
