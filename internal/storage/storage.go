// Package storage resolves the configured backend selector into a concrete
// notes repository. Call sites depend on the repository contract only; the
// selector string is interpreted exactly once, here.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/notes"
	"github.com/pocketnotes/backend/internal/storage/couchdb"
	"github.com/pocketnotes/backend/internal/storage/mongodb"
)

// Backend identifies a storage backend implementation.
type Backend string

const (
	// BackendCouchDB selects the indexed-view adapter.
	BackendCouchDB Backend = "couchdb"
	// BackendMongoDB selects the query adapter.
	BackendMongoDB Backend = "mongodb"
)

// ErrUnknownBackend indicates an unrecognized backend selector.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// ParseBackend resolves the configured selector string. The empty string maps
// to the default CouchDB backend.
func ParseBackend(raw string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(BackendCouchDB):
		return BackendCouchDB, nil
	case string(BackendMongoDB):
		return BackendMongoDB, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, raw)
}

// Config carries the values the repository construction step accepts per
// backend: the selector, the connection URL, and the database name.
type Config struct {
	Backend  Backend
	URL      string
	Database string
	Clock    func() time.Time
	Logger   *zap.Logger
}

// New constructs the repository for the selected backend along with a cleanup
// function releasing its connection. The repository still requires Init before
// use.
func New(cfg Config) (notes.Repository, func(context.Context) error, error) {
	switch cfg.Backend {
	case BackendCouchDB:
		repo, err := couchdb.New(couchdb.Config{
			URL:          cfg.URL,
			DatabaseName: cfg.Database,
			Clock:        cfg.Clock,
			IDProvider:   notes.NewUUIDProvider(),
			Logger:       cfg.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case BackendMongoDB:
		repo, err := mongodb.New(mongodb.Config{
			URI:      cfg.URL,
			Database: cfg.Database,
			Clock:    cfg.Clock,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
