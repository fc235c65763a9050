package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s DocumentStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, FavoritesKey("nobody"))
	require.NoError(t, err)
	assert.False(t, ok, "missing record is not an error")

	key := FavoritesKey("user-1")
	require.NoError(t, s.Set(ctx, key, []byte(`{"sessions":[{"title":"A","time":"10:00","day":"2026-05-20"}]}`)))

	body, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"sessions":[{"title":"A","time":"10:00","day":"2026-05-20"}]}`, string(body))

	// Full replacement, never a merge.
	require.NoError(t, s.Set(ctx, key, []byte(`{"sessions":[]}`)))
	body, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"sessions":[]}`, string(body))

	assert.ErrorIs(t, s.Set(ctx, "", []byte(`{}`)), ErrEmptyKey)
	_, _, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_CopiesBytes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	body := []byte(`{"a":1}`)
	require.NoError(t, m.Set(ctx, "k", body))
	body[2] = 'X'

	got, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[2] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, `{"a":1}`, string(again))
}

func TestFile(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFile_SurvivesReopenAndUsesPrivatePerms(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, AccountKey("Ana@Example.org"), []byte(`{"email":"ana@example.org"}`)))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	body, ok, err := reopened.Get(ctx, AccountKey("ana@example.org "))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"email":"ana@example.org"}`, string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	info, err := os.Stat(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewFile_EmptyDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Options{Backend: "postgres"})
	assert.Error(t, err, "empty DSN")

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "favorites/u1", FavoritesKey("u1"))
	assert.Equal(t, "accounts/ana@example.org", AccountKey("  Ana@Example.ORG "))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping Postgres integration tests: TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Unique keys so reruns against the same database do not interfere.
	suffix := time.Now().Format("20060102150405.000000000")
	key := FavoritesKey("pg-" + suffix)

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	doc := map[string]any{"sessions": []any{map[string]any{"title": "A", "time": "10:00"}}}
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, key, body))
	require.NoError(t, s.Set(ctx, key, body))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(body), string(got))
}
