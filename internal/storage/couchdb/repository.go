// Package couchdb implements the notes repository against CouchDB, where reads
// are served from declaratively defined map views and every mutation of an
// existing document must carry the revision token obtained from a prior fetch.
package couchdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/notes"
)

const (
	docType     = "note"
	designDocID = "_design/notes"

	viewAll     = "_view/all"
	viewActive  = "_view/active"
	viewDeleted = "_view/deleted"
)

// designDoc declares the three indexed views the adapter reads from. View keys
// are epoch milliseconds rather than the stored RFC 3339 strings: string keys
// collate bytewise, and JSON timestamp encoding drops trailing fractional
// zeros, which would order a whole-second timestamp after fractional ones in
// the same second. Numeric keys collate chronologically.
var designDoc = map[string]interface{}{
	"_id":      designDocID,
	"language": "javascript",
	"views": map[string]interface{}{
		"all": map[string]interface{}{
			"map": "function (doc) { if (doc.type === 'note') { emit(new Date(doc.updatedAt).getTime(), null); } }",
		},
		"active": map[string]interface{}{
			"map": "function (doc) { if (doc.type === 'note' && !doc.deletedAt) { emit(new Date(doc.updatedAt).getTime(), null); } }",
		},
		"deleted": map[string]interface{}{
			"map": "function (doc) { if (doc.type === 'note' && doc.deletedAt) { emit(new Date(doc.deletedAt).getTime(), null); } }",
		},
	},
}

var (
	errMissingURL        = errors.New("couchdb: server url is required")
	errMissingDatabase   = errors.New("couchdb: database name is required")
	errMissingIDProvider = errors.New("couchdb: id provider is required")
	errNotInitialized    = errors.New("couchdb: repository not initialized")
)

// document is the stored note shape. Timestamps are pointers so hydration can
// tell an absent field from a zero value.
type document struct {
	ID        string     `json:"_id,omitempty"`
	Rev       string     `json:"_rev,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Config carries the dependencies for the CouchDB adapter.
type Config struct {
	URL          string
	DatabaseName string
	Clock        func() time.Time
	IDProvider   notes.IDProvider
	Logger       *zap.Logger
}

// Repository is the CouchDB-backed notes repository. The zero value is not
// usable; construct it with New and call Init before any other operation.
type Repository struct {
	notes.Unsupported

	client *kivik.Client
	db     *kivik.DB
	name   string
	clock  func() time.Time
	ids    notes.IDProvider
	logger *zap.Logger
}

var _ notes.Repository = (*Repository)(nil)

// New validates the configuration and prepares a CouchDB client. No I/O
// happens until Init.
func New(cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errMissingURL
	}
	if strings.TrimSpace(cfg.DatabaseName) == "" {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := kivik.New("couch", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("couchdb: connect %s: %w", cfg.URL, err)
	}

	return &Repository{
		client: client,
		name:   cfg.DatabaseName,
		clock:  clock,
		ids:    cfg.IDProvider,
		logger: logger,
	}, nil
}

// Init ensures the database and the design document exist. Both checks look
// before creating, so repeated startup does not redefine existing views.
func (r *Repository) Init(ctx context.Context) error {
	exists, err := r.client.DBExists(ctx, r.name)
	if err != nil {
		return fmt.Errorf("couchdb: check database %s: %w", r.name, err)
	}
	if !exists {
		err := r.client.CreateDB(ctx, r.name)
		// Another process may have created the database between the check and
		// the create.
		if err != nil && kivik.HTTPStatus(err) != http.StatusPreconditionFailed {
			return fmt.Errorf("couchdb: create database %s: %w", r.name, err)
		}
	}

	db := r.client.DB(r.name)
	if err := db.Err(); err != nil {
		return fmt.Errorf("couchdb: open database %s: %w", r.name, err)
	}
	r.db = db

	var current map[string]interface{}
	err = db.Get(ctx, designDocID).ScanDoc(&current)
	if err == nil {
		return nil
	}
	if kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("couchdb: check design document: %w", err)
	}

	_, err = db.Put(ctx, designDocID, designDoc)
	if err != nil && kivik.HTTPStatus(err) != http.StatusConflict {
		return fmt.Errorf("couchdb: create design document: %w", err)
	}
	r.logger.Info("couchdb views created",
		zap.String("database", r.name),
		zap.String("design_document", designDocID))
	return nil
}

// Close releases the underlying client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

func (r *Repository) FindAll(ctx context.Context) ([]notes.Note, error) {
	return r.queryView(ctx, viewActive)
}

func (r *Repository) FindDeleted(ctx context.Context) ([]notes.Note, error) {
	return r.queryView(ctx, viewDeleted)
}

func (r *Repository) FindAllIncludingDeleted(ctx context.Context) ([]notes.Note, error) {
	return r.queryView(ctx, viewAll)
}

func (r *Repository) FindByID(ctx context.Context, id string) (*notes.Note, error) {
	doc, err := r.getDocument(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	note, ok := r.hydrate(*doc)
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (r *Repository) Create(ctx context.Context, title, content string) (*notes.Note, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	if err := notes.ValidateInput(title, content); err != nil {
		return nil, err
	}

	id, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("couchdb: mint document id: %w", err)
	}

	now := r.clock().UTC()
	doc := document{
		ID:        id,
		Type:      docType,
		Title:     title,
		Content:   content,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if _, err := r.db.Put(ctx, id, doc); err != nil {
		return nil, fmt.Errorf("couchdb: create document: %w", err)
	}

	return &notes.Note{
		ID:        id,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *Repository) Update(ctx context.Context, id, title, content string) (*notes.Note, error) {
	if err := notes.ValidateInput(title, content); err != nil {
		return nil, err
	}

	doc, err := r.getDocument(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}

	now := r.clock().UTC()
	doc.Title = title
	doc.Content = content
	doc.UpdatedAt = &now

	found, err := r.putDocument(ctx, *doc)
	if err != nil || !found {
		return nil, err
	}

	note, ok := r.hydrate(*doc)
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (r *Repository) MoveToRecycleBin(ctx context.Context, id string) (bool, error) {
	doc, err := r.getDocument(ctx, id)
	if err != nil || doc == nil {
		return false, err
	}

	now := r.clock().UTC()
	doc.DeletedAt = &now
	doc.UpdatedAt = &now
	return r.putDocument(ctx, *doc)
}

func (r *Repository) Restore(ctx context.Context, id string) (bool, error) {
	doc, err := r.getDocument(ctx, id)
	if err != nil || doc == nil {
		return false, err
	}

	now := r.clock().UTC()
	doc.DeletedAt = nil
	doc.UpdatedAt = &now
	return r.putDocument(ctx, *doc)
}

func (r *Repository) PermanentDelete(ctx context.Context, id string) (bool, error) {
	doc, err := r.getDocument(ctx, id)
	if err != nil || doc == nil {
		return false, err
	}
	return r.deleteDocument(ctx, doc.ID, doc.Rev)
}

func (r *Repository) EmptyRecycleBin(ctx context.Context) (int, error) {
	docs, err := r.queryViewDocuments(ctx, viewDeleted)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		found, err := r.deleteDocument(ctx, doc.ID, doc.Rev)
		if err != nil {
			return removed, err
		}
		if found {
			removed++
		}
	}
	return removed, nil
}

func (r *Repository) RestoreAll(ctx context.Context) (int, error) {
	docs, err := r.queryViewDocuments(ctx, viewDeleted)
	if err != nil {
		return 0, err
	}

	now := r.clock().UTC()
	restored := 0
	for _, doc := range docs {
		doc.DeletedAt = nil
		doc.UpdatedAt = &now
		found, err := r.putDocument(ctx, doc)
		if err != nil {
			return restored, err
		}
		if found {
			restored++
		}
	}
	return restored, nil
}

func (r *Repository) CountDeleted(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, errNotInitialized
	}

	rows := r.db.Query(ctx, designDocID, viewDeleted, kivik.Params(map[string]interface{}{
		"update": "true",
	}))
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("couchdb: count deleted view: %w", err)
	}
	return count, nil
}

// getDocument fetches the current document, including its revision token.
// Unknown ids and non-note documents resolve to nil, not an error.
func (r *Repository) getDocument(ctx context.Context, id string) (*document, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	var doc document
	if err := r.db.Get(ctx, id).ScanDoc(&doc); err != nil {
		switch kivik.HTTPStatus(err) {
		case http.StatusNotFound:
			return nil, nil
		case http.StatusBadRequest:
			// CouchDB rejects structurally invalid document ids, such as a
			// leading underscore, with 400 illegal_docid. An id the backend
			// cannot store resolves to not-found, not a fault.
			return nil, nil
		}
		return nil, fmt.Errorf("couchdb: fetch document %s: %w", id, err)
	}
	if doc.Type != docType {
		return nil, nil
	}
	return &doc, nil
}

// putDocument submits a mutation tagged with the revision token carried by the
// document. A stale token surfaces as ErrConflict; a document deleted since
// the fetch reports not-found.
func (r *Repository) putDocument(ctx context.Context, doc document) (bool, error) {
	_, err := r.db.Put(ctx, doc.ID, doc)
	if err == nil {
		return true, nil
	}
	switch kivik.HTTPStatus(err) {
	case http.StatusConflict:
		return false, fmt.Errorf("%w: note %s", notes.ErrConflict, doc.ID)
	case http.StatusNotFound, http.StatusBadRequest:
		return false, nil
	}
	return false, fmt.Errorf("couchdb: write document %s: %w", doc.ID, err)
}

func (r *Repository) deleteDocument(ctx context.Context, id, rev string) (bool, error) {
	_, err := r.db.Delete(ctx, id, rev)
	if err == nil {
		return true, nil
	}
	switch kivik.HTTPStatus(err) {
	case http.StatusConflict:
		return false, fmt.Errorf("%w: note %s", notes.ErrConflict, id)
	case http.StatusNotFound, http.StatusBadRequest:
		return false, nil
	}
	return false, fmt.Errorf("couchdb: delete document %s: %w", id, err)
}

func (r *Repository) queryView(ctx context.Context, view string) ([]notes.Note, error) {
	docs, err := r.queryViewDocuments(ctx, view)
	if err != nil {
		return nil, err
	}

	result := make([]notes.Note, 0, len(docs))
	for _, doc := range docs {
		note, ok := r.hydrate(doc)
		if !ok {
			continue
		}
		result = append(result, note)
	}
	return result, nil
}

// queryViewDocuments reads a view with an explicit refresh request so a write
// is visible to the immediately following read. Rows without a usable
// document are skipped.
func (r *Repository) queryViewDocuments(ctx context.Context, view string) ([]document, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}

	rows := r.db.Query(ctx, designDocID, view, kivik.Params(map[string]interface{}{
		"include_docs": true,
		"descending":   true,
		"update":       "true",
	}))
	defer rows.Close()

	var docs []document
	for rows.Next() {
		var doc document
		if err := rows.ScanDoc(&doc); err != nil {
			r.logger.Debug("skipping view row without document", zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couchdb: query %s: %w", view, err)
	}
	return docs, nil
}

// hydrate maps a stored document to the entity. Documents missing required
// text fields are dropped; missing timestamps fall back to the current time,
// which fabricates a plausible value and is therefore logged.
func (r *Repository) hydrate(doc document) (notes.Note, bool) {
	if doc.ID == "" || doc.Title == "" || doc.Content == "" {
		r.logger.Debug("skipping malformed note document", zap.String("id", doc.ID))
		return notes.Note{}, false
	}

	now := r.clock().UTC()
	createdAt := now
	if doc.CreatedAt != nil {
		createdAt = *doc.CreatedAt
	} else {
		r.logger.Warn("stored note missing createdAt, substituting current time",
			zap.String("id", doc.ID))
	}
	updatedAt := now
	if doc.UpdatedAt != nil {
		updatedAt = *doc.UpdatedAt
	} else {
		r.logger.Warn("stored note missing updatedAt, substituting current time",
			zap.String("id", doc.ID))
	}

	return notes.Note{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: doc.DeletedAt,
	}, true
}
