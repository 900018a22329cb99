// Package mongodb implements the notes repository against MongoDB, where
// predicates are pushed down to the server and single-document mutations use
// atomic find-and-modify primitives, so no revision bookkeeping is needed.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/notes"
)

const defaultCollection = "notes"

var (
	errMissingURI      = errors.New("mongodb: connection uri is required")
	errMissingDatabase = errors.New("mongodb: database name is required")
	errNotInitialized  = errors.New("mongodb: repository not initialized")
)

// document is the stored note shape. DeletedAt is written as an explicit null
// for active notes so the deletion predicates match uniformly.
type document struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Title     string        `bson:"title"`
	Content   string        `bson:"content"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
	DeletedAt *time.Time    `bson:"deletedAt"`
}

// Config carries the dependencies for the MongoDB adapter.
type Config struct {
	URI        string
	Database   string
	Collection string
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Repository is the MongoDB-backed notes repository. Construct it with New and
// call Init before any other operation.
type Repository struct {
	notes.Unsupported

	uri        string
	database   string
	collection string
	clock      func() time.Time
	logger     *zap.Logger

	mu          sync.Mutex
	client      *mongo.Client
	coll        *mongo.Collection
	initialized bool
}

var _ notes.Repository = (*Repository)(nil)

// New validates the configuration. The connection is established by Init.
func New(cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errMissingURI
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errMissingDatabase
	}

	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository{
		uri:        cfg.URI,
		database:   cfg.Database,
		collection: collection,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Init connects, verifies reachability, and ensures the query indexes exist.
// Calling Init again on an initialized repository is a no-op.
func (r *Repository) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(r.uri))
	if err != nil {
		return fmt.Errorf("mongodb: connect %s: %w", r.uri, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongodb: ping: %w", err)
	}

	coll := client.Database(r.database).Collection(r.collection)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "deletedAt", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongodb: ensure indexes: %w", err)
	}

	r.client = client
	r.coll = coll
	r.initialized = true
	r.logger.Info("mongodb collection ready",
		zap.String("database", r.database),
		zap.String("collection", r.collection))
	return nil
}

// Close disconnects the underlying client.
func (r *Repository) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Disconnect(ctx)
	r.client = nil
	r.coll = nil
	r.initialized = false
	return err
}

func (r *Repository) FindAll(ctx context.Context) ([]notes.Note, error) {
	return r.find(ctx, activeFilter(), "updatedAt")
}

func (r *Repository) FindDeleted(ctx context.Context) ([]notes.Note, error) {
	return r.find(ctx, deletedFilter(), "deletedAt")
}

func (r *Repository) FindAllIncludingDeleted(ctx context.Context) ([]notes.Note, error) {
	return r.find(ctx, bson.M{}, "updatedAt")
}

func (r *Repository) FindByID(ctx context.Context, id string) (*notes.Note, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	if r.coll == nil {
		return nil, errNotInitialized
	}

	var doc document
	err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: find note %s: %w", id, err)
	}
	return r.hydrateOne(doc), nil
}

func (r *Repository) Create(ctx context.Context, title, content string) (*notes.Note, error) {
	if r.coll == nil {
		return nil, errNotInitialized
	}
	if err := notes.ValidateInput(title, content); err != nil {
		return nil, err
	}

	now := r.now()
	doc := document{
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongodb: insert note: %w", err)
	}
	oid, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, fmt.Errorf("mongodb: unexpected inserted id type %T", result.InsertedID)
	}

	return &notes.Note{
		ID:        oid.Hex(),
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
	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	if r.coll == nil {
		return nil, errNotInitialized
	}

	update := bson.M{"$set": bson.M{
		"title":     title,
		"content":   content,
		"updatedAt": r.now(),
	}}
	doc, found, err := r.findOneAndUpdate(ctx, oid, update)
	if err != nil || !found {
		return nil, err
	}
	return r.hydrateOne(doc), nil
}

func (r *Repository) MoveToRecycleBin(ctx context.Context, id string) (bool, error) {
	now := r.now()
	return r.applyByID(ctx, id, bson.M{"$set": bson.M{
		"deletedAt": now,
		"updatedAt": now,
	}})
}

func (r *Repository) Restore(ctx context.Context, id string) (bool, error) {
	return r.applyByID(ctx, id, bson.M{"$set": bson.M{
		"deletedAt": nil,
		"updatedAt": r.now(),
	}})
}

func (r *Repository) PermanentDelete(ctx context.Context, id string) (bool, error) {
	oid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	if r.coll == nil {
		return false, errNotInitialized
	}

	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongodb: delete note %s: %w", id, err)
	}
	return true, nil
}

func (r *Repository) EmptyRecycleBin(ctx context.Context) (int, error) {
	if r.coll == nil {
		return 0, errNotInitialized
	}

	result, err := r.coll.DeleteMany(ctx, deletedFilter())
	if err != nil {
		return 0, fmt.Errorf("mongodb: empty recycle bin: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (r *Repository) RestoreAll(ctx context.Context) (int, error) {
	if r.coll == nil {
		return 0, errNotInitialized
	}

	update := bson.M{"$set": bson.M{
		"deletedAt": nil,
		"updatedAt": r.now(),
	}}
	result, err := r.coll.UpdateMany(ctx, deletedFilter(), update)
	if err != nil {
		return 0, fmt.Errorf("mongodb: restore all: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *Repository) CountDeleted(ctx context.Context) (int, error) {
	if r.coll == nil {
		return 0, errNotInitialized
	}

	count, err := r.coll.CountDocuments(ctx, deletedFilter())
	if err != nil {
		return 0, fmt.Errorf("mongodb: count deleted: %w", err)
	}
	return int(count), nil
}

// now truncates to the millisecond resolution BSON datetimes store, so a
// returned snapshot compares equal to the value a later read hydrates.
func (r *Repository) now() time.Time {
	return r.clock().UTC().Truncate(time.Millisecond)
}

// applyByID runs an atomic update against a single note and reports whether a
// note matched. Malformed ids report not-found without touching the backend.
func (r *Repository) applyByID(ctx context.Context, id string, update bson.M) (bool, error) {
	oid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	if r.coll == nil {
		return false, errNotInitialized
	}

	_, found, err := r.findOneAndUpdate(ctx, oid, update)
	return found, err
}

func (r *Repository) findOneAndUpdate(ctx context.Context, oid bson.ObjectID, update bson.M) (document, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return document{}, false, nil
	}
	if err != nil {
		return document{}, false, fmt.Errorf("mongodb: update note %s: %w", oid.Hex(), err)
	}
	return doc, true, nil
}

func (r *Repository) find(ctx context.Context, filter bson.M, sortField string) ([]notes.Note, error) {
	if r.coll == nil {
		return nil, errNotInitialized
	}

	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: query notes: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]notes.Note, 0)
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			r.logger.Debug("skipping undecodable note document", zap.Error(err))
			continue
		}
		note, ok := r.hydrate(doc)
		if !ok {
			continue
		}
		result = append(result, note)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterate notes: %w", err)
	}
	return result, nil
}

func (r *Repository) hydrateOne(doc document) *notes.Note {
	note, ok := r.hydrate(doc)
	if !ok {
		return nil
	}
	return &note
}

// hydrate maps a stored document to the entity. Documents missing required
// text fields are dropped; missing timestamps fall back to the current time,
// which fabricates a plausible value and is therefore logged.
func (r *Repository) hydrate(doc document) (notes.Note, bool) {
	if doc.ID.IsZero() || doc.Title == "" || doc.Content == "" {
		r.logger.Debug("skipping malformed note document", zap.String("id", doc.ID.Hex()))
		return notes.Note{}, false
	}

	now := r.now()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
		r.logger.Warn("stored note missing createdAt, substituting current time",
			zap.String("id", doc.ID.Hex()))
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
		r.logger.Warn("stored note missing updatedAt, substituting current time",
			zap.String("id", doc.ID.Hex()))
	}

	return notes.Note{
		ID:        doc.ID.Hex(),
		Title:     doc.Title,
		Content:   doc.Content,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: doc.DeletedAt,
	}, true
}

// parseID translates the backend's fixed-length hex identifier format.
// Structurally invalid input means the note cannot exist, so the caller maps
// it to not-found rather than an error.
func parseID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}

func activeFilter() bson.M {
	return bson.M{"deletedAt": nil}
}

func deletedFilter() bson.M {
	return bson.M{"deletedAt": bson.M{"$ne": nil}}
}
