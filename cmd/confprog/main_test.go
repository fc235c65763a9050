package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confprog/internal/catalog"
	"confprog/internal/config"
	"confprog/internal/ics"
)

const datasetPath = "../../data/programa.json"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CatalogSource = datasetPath
	cfg.CatalogCacheDir = filepath.Join(dir, "cache")
	cfg.Store.Backend = "memory"
	cfg.Store.Dir = ""
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func TestReadPassword_Piped(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = w.WriteString("secreto\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	pw, err := readPassword(r)
	require.NoError(t, err)
	assert.Equal(t, "secreto", pw)
}

func TestRunExport_WritesCalendar(t *testing.T) {
	cfgPath := writeConfig(t)
	out := t.TempDir()

	cat, err := catalog.Load(context.Background(), datasetPath, nil)
	require.NoError(t, err)
	days := cat.Days()
	require.NotEmpty(t, days)
	sess := days[0].Sessions[0]

	require.NoError(t, runExport([]string{"-config", cfgPath, "-id", sess.ID, "-out", out, "-verify"}))

	payload, err := os.ReadFile(filepath.Join(out, ics.Filename(sess.Title)))
	require.NoError(t, err)
	events, err := ics.Decode(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, sess.Room, events[0].Location)
}

func TestRunExport_UnknownSession(t *testing.T) {
	cfgPath := writeConfig(t)
	err := runExport([]string{"-config", cfgPath, "-id", "does-not-exist", "-out", t.TempDir()})
	assert.ErrorIs(t, err, catalog.ErrSessionNotFound)
}
