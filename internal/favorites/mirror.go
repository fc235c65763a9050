package favorites

import (
	"context"
	"slices"
	"sync"

	"confprog/internal/auth"
	appLog "confprog/internal/log"
	"confprog/internal/model"
)

// Mirror is one client's in-memory view of the signed-in user's
// favorites. It follows an auth.Client and serializes its own operations.
type Mirror struct {
	repo *Repository

	mu          sync.Mutex
	state       auth.State
	list        model.FavoritesList
	loadErr     error
	unsubscribe func()
}

func NewMirror(repo *Repository) *Mirror {
	return &Mirror{repo: repo, list: model.FavoritesList{}}
}

// Attach subscribes the mirror to c. The current identity is applied
// before Attach returns.
func (m *Mirror) Attach(ctx context.Context, c *auth.Client) {
	unsub := c.Subscribe(ctx, m.apply)
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
}

// Detach stops following the auth client.
func (m *Mirror) Detach() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *Mirror) apply(ctx context.Context, id *auth.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, effect := m.state.Next(id)
	m.state = next

	switch effect {
	case auth.EffectLoadFavorites:
		list, err := m.repo.Load(ctx, next.UserID)
		m.list = list
		m.loadErr = err
		if err != nil {
			appLog.Error("favorites load failed, showing empty list", err, "user_id", next.UserID)
			return
		}
		appLog.Debug("favorites loaded", "user_id", next.UserID, "count", len(list))
	case auth.EffectClearFavorites:
		m.list = model.FavoritesList{}
		m.loadErr = nil
	}
}

// Toggle flips s for the signed-in user and persists the whole list. When
// persisting fails the local change is kept and the error wraps
// ErrPersistenceUnavailable. Signed out, nothing changes.
func (m *Mirror) Toggle(ctx context.Context, s model.Session, day model.Day) (model.FavoritesList, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status != auth.StatusSignedIn {
		return slices.Clone(m.list), false, ErrAuthenticationRequired
	}

	next, added := Toggle(m.list, s, day)
	m.list = next

	if err := m.repo.Persist(ctx, m.state.UserID, next); err != nil {
		appLog.Error("favorites persist failed, keeping local change", err,
			"user_id", m.state.UserID, "session", s.ID, "added", added)
		return slices.Clone(next), added, err
	}
	return slices.Clone(next), added, nil
}

// List returns a copy of the local favorites.
func (m *Mirror) List() model.FavoritesList {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.list)
}

// Grouped returns the local favorites grouped by day.
func (m *Mirror) Grouped(dayOrder []string) []DayGroup {
	return GroupByDay(m.List(), dayOrder)
}

// Contains reports whether s is a local favorite.
func (m *Mirror) Contains(s model.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Contains(m.list, s)
}

// State returns the last applied auth state.
func (m *Mirror) State() auth.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LoadError is the error of the last load, if it failed.
func (m *Mirror) LoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}
