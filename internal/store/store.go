package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DocumentStore is a per-key record store. Documents are opaque JSON bytes;
// Set replaces the whole record.
type DocumentStore interface {
	// Get returns the document stored under key. ok is false when no record
	// exists; that is not an error.
	Get(ctx context.Context, key string) (body []byte, ok bool, err error)
	// Set replaces the record under key.
	Set(ctx context.Context, key string, body []byte) error
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

var ErrEmptyKey = errors.New("document key is empty")

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	PostgresDSN string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (DocumentStore, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		f, err := NewFile(opts.Dir)
		if err != nil {
			return nil, err
		}
		return f, nil
	case BackendPostgres:
		p, err := NewPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// FavoritesKey is the record key of a user's favorites document.
func FavoritesKey(userID string) string {
	return "favorites/" + userID
}

// AccountKey is the record key of a password account. Emails are
// case-insensitive.
func AccountKey(email string) string {
	return "accounts/" + strings.ToLower(strings.TrimSpace(email))
}
