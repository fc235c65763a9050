package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"confprog/internal/model"
	"confprog/internal/store"
)

var (
	// ErrAuthenticationRequired is returned by toggles while signed out.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrPersistenceUnavailable wraps any document store failure.
	ErrPersistenceUnavailable = errors.New("favorites persistence unavailable")
)

// DayGroup is the favorites of one day.
type DayGroup struct {
	Day      string              `json:"day"`
	Sessions model.FavoritesList `json:"sessions"`
}

// Toggle removes the entry matching s if present, otherwise appends s
// stamped with ownerDay's date. The input list is never modified.
func Toggle(list model.FavoritesList, s model.Session, ownerDay model.Day) (model.FavoritesList, bool) {
	if i := slices.IndexFunc(list, func(e model.FavoriteEntry) bool { return e.SameAs(s) }); i >= 0 {
		out := make(model.FavoritesList, 0, len(list)-1)
		out = append(out, list[:i]...)
		return append(out, list[i+1:]...), false
	}

	entry := model.FavoriteEntry{Session: s, Day: ownerDay.Date}
	entry.Speakers = slices.Clone(s.Speakers)

	out := make(model.FavoritesList, 0, len(list)+1)
	out = append(out, list...)
	return append(out, entry), true
}

// Contains reports whether list holds an entry matching s.
func Contains(list model.FavoritesList, s model.Session) bool {
	return slices.ContainsFunc(list, func(e model.FavoriteEntry) bool { return e.SameAs(s) })
}

// GroupByDay buckets list by stamped day. Only non-empty groups are
// returned, following dayOrder; days missing from dayOrder come last in
// first-seen order. Entries keep their list order within a group.
func GroupByDay(list model.FavoritesList, dayOrder []string) []DayGroup {
	buckets := make(map[string]model.FavoritesList)
	var unknown []string
	for _, e := range list {
		if _, seen := buckets[e.Day]; !seen && !slices.Contains(dayOrder, e.Day) {
			unknown = append(unknown, e.Day)
		}
		buckets[e.Day] = append(buckets[e.Day], e)
	}

	groups := make([]DayGroup, 0, len(buckets))
	for _, day := range dayOrder {
		if entries := buckets[day]; len(entries) > 0 {
			groups = append(groups, DayGroup{Day: day, Sessions: entries})
			delete(buckets, day)
		}
	}
	for _, day := range unknown {
		groups = append(groups, DayGroup{Day: day, Sessions: buckets[day]})
	}
	return groups
}

// Repository reads and writes favorites documents.
type Repository struct {
	docs store.DocumentStore
	now  func() time.Time
}

func NewRepository(docs store.DocumentStore) *Repository {
	return &Repository{docs: docs, now: time.Now}
}

// Load returns the user's favorites. A missing record is an empty list.
func (r *Repository) Load(ctx context.Context, userID string) (model.FavoritesList, error) {
	body, ok, err := r.docs.Get(ctx, store.FavoritesKey(userID))
	if err != nil {
		return model.FavoritesList{}, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	if !ok {
		return model.FavoritesList{}, nil
	}

	var doc model.FavoritesDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.FavoritesList{}, fmt.Errorf("%w: decode: %w", ErrPersistenceUnavailable, err)
	}
	if doc.Sessions == nil {
		return model.FavoritesList{}, nil
	}
	return doc.Sessions, nil
}

// Persist overwrites the user's record with list.
func (r *Repository) Persist(ctx context.Context, userID string, list model.FavoritesList) error {
	if list == nil {
		list = model.FavoritesList{}
	}
	body, err := json.Marshal(model.FavoritesDocument{Sessions: list, UpdatedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistenceUnavailable, err)
	}
	if err := r.docs.Set(ctx, store.FavoritesKey(userID), body); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}
