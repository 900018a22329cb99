package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

func fixedClock(seconds int64) func() time.Time {
	return func() time.Time {
		return time.Unix(seconds, 0).UTC()
	}
}

func testRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(Config{
		URI:      "mongodb://localhost:27017",
		Database: "notes",
		Clock:    fixedClock(1700000000),
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return repo
}

func TestNewRequiresURI(t *testing.T) {
	_, err := New(Config{Database: "notes"})
	if !errors.Is(err, errMissingURI) {
		t.Fatalf("expected errMissingURI, got %v", err)
	}
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := New(Config{URI: "mongodb://localhost:27017"})
	if !errors.Is(err, errMissingDatabase) {
		t.Fatalf("expected errMissingDatabase, got %v", err)
	}
}

func TestNewDefaultsCollectionName(t *testing.T) {
	repo := testRepository(t)
	if repo.collection != defaultCollection {
		t.Fatalf("expected default collection %q, got %q", defaultCollection, repo.collection)
	}
}

func TestParseIDRejectsMalformedInput(t *testing.T) {
	malformed := []string{
		"",
		"does-not-exist",
		"123",
		"zzzzzzzzzzzzzzzzzzzzzzzz",
		"68a1b2c3d4e5f6a7b8c9d0e1ff",
	}
	for _, id := range malformed {
		if _, ok := parseID(id); ok {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

func TestParseIDAcceptsHexObjectID(t *testing.T) {
	oid := bson.NewObjectID()
	parsed, ok := parseID(oid.Hex())
	if !ok {
		t.Fatalf("expected %q to parse", oid.Hex())
	}
	if parsed != oid {
		t.Fatalf("expected %v, got %v", oid, parsed)
	}
}

// A structurally invalid id resolves to not-found before any backend I/O, so
// these calls succeed even on a repository that was never initialized.
func TestMalformedIDResolvesToNotFound(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	note, err := repo.FindByID(ctx, "not-a-hex-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Fatalf("expected nil note, got %+v", note)
	}

	note, err = repo.Update(ctx, "not-a-hex-token", "title", "content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Fatalf("expected nil note, got %+v", note)
	}

	for operation, call := range map[string]func() (bool, error){
		"MoveToRecycleBin": func() (bool, error) { return repo.MoveToRecycleBin(ctx, "xyz") },
		"Restore":          func() (bool, error) { return repo.Restore(ctx, "xyz") },
		"PermanentDelete":  func() (bool, error) { return repo.PermanentDelete(ctx, "xyz") },
	} {
		found, err := call()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", operation, err)
		}
		if found {
			t.Fatalf("%s: expected not-found for malformed id", operation)
		}
	}
}

func TestOperationsBeforeInitFail(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if _, err := repo.FindAll(ctx); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := repo.Create(ctx, "t", "c"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := repo.CountDeleted(ctx); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
}

func TestHydrateMapsDocument(t *testing.T) {
	repo := testRepository(t)
	oid := bson.NewObjectID()
	createdAt := time.Unix(1600000000, 0).UTC()
	updatedAt := time.Unix(1600000500, 0).UTC()
	deletedAt := time.Unix(1600001000, 0).UTC()

	note, ok := repo.hydrate(document{
		ID:        oid,
		Title:     "groceries",
		Content:   "milk, eggs",
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: &deletedAt,
	})
	if !ok {
		t.Fatalf("expected document to hydrate")
	}
	if note.ID != oid.Hex() {
		t.Fatalf("expected id %q, got %q", oid.Hex(), note.ID)
	}
	if !note.CreatedAt.Equal(createdAt) || !note.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("unexpected timestamps: %+v", note)
	}
	if note.DeletedAt == nil || !note.DeletedAt.Equal(deletedAt) {
		t.Fatalf("expected deletedAt to carry over: %+v", note.DeletedAt)
	}
}

func TestHydrateDropsMalformedDocument(t *testing.T) {
	repo := testRepository(t)
	oid := bson.NewObjectID()

	if _, ok := repo.hydrate(document{ID: oid, Content: "body"}); ok {
		t.Fatalf("expected document without title to be dropped")
	}
	if _, ok := repo.hydrate(document{ID: oid, Title: "t"}); ok {
		t.Fatalf("expected document without content to be dropped")
	}
	if _, ok := repo.hydrate(document{Title: "t", Content: "c"}); ok {
		t.Fatalf("expected document without id to be dropped")
	}
}

func TestHydrateSubstitutesMissingTimestamps(t *testing.T) {
	repo := testRepository(t)
	oid := bson.NewObjectID()

	note, ok := repo.hydrate(document{ID: oid, Title: "t", Content: "c"})
	if !ok {
		t.Fatalf("expected document to hydrate")
	}

	now := time.Unix(1700000000, 0).UTC()
	if !note.CreatedAt.Equal(now) || !note.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps to default to the clock, got %+v", note)
	}
}

func TestDeletionFilters(t *testing.T) {
	active := activeFilter()
	if active["deletedAt"] != nil {
		t.Fatalf("expected active filter to match null deletedAt, got %v", active)
	}

	deleted := deletedFilter()
	predicate, ok := deleted["deletedAt"].(bson.M)
	if !ok {
		t.Fatalf("expected deleted filter predicate, got %v", deleted)
	}
	if predicate["$ne"] != nil {
		t.Fatalf("expected $ne null predicate, got %v", predicate)
	}
}
