package couchdb

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-kivik/kivik/v4/mockdb"
	"go.uber.org/zap"

	"github.com/pocketnotes/backend/internal/notes"
)

// statusError mimics the status-coded failures the CouchDB transport reports,
// so the adapter's error translation can be exercised without a live server.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func (e *statusError) HTTPStatus() int {
	return e.status
}

const storedNoteJSON = `{
	"_id": "note-1",
	"_rev": "2-abc",
	"type": "note",
	"title": "groceries",
	"content": "milk, eggs",
	"createdAt": "2023-11-14T22:13:20Z",
	"updatedAt": "2023-11-14T22:13:20Z"
}`

func mockRepository(t *testing.T) (*Repository, *mockdb.DB) {
	t.Helper()

	client, mock, err := mockdb.New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	db := mock.NewDB()
	mock.ExpectDB().WithName("notes").WillReturn(db)

	repo := &Repository{
		client: client,
		name:   "notes",
		clock:  fixedClock(1700000000),
		ids:    notes.NewUUIDProvider(),
		logger: zap.NewNop(),
	}
	repo.db = client.DB("notes")
	return repo, db
}

func TestFindByIDTreatsIllegalDocIDAsNotFound(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("_foo").WillReturnError(&statusError{
		status:  http.StatusBadRequest,
		message: "Bad Request: illegal_docid",
	})

	note, err := repo.FindByID(context.Background(), "_foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Fatalf("expected illegal doc id to resolve to nil, got %+v", note)
	}
}

func TestMoveToRecycleBinTreatsIllegalDocIDAsNotFound(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("_foo").WillReturnError(&statusError{
		status:  http.StatusBadRequest,
		message: "Bad Request: illegal_docid",
	})

	found, err := repo.MoveToRecycleBin(context.Background(), "_foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected illegal doc id to report not-found")
	}
}

func TestUpdateTranslatesRevisionConflict(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("note-1").WillReturn(mockdb.DocumentT(t, storedNoteJSON))
	db.ExpectPut().WithDocID("note-1").WillReturnError(&statusError{
		status:  http.StatusConflict,
		message: "Conflict: Document update conflict.",
	})

	_, err := repo.Update(context.Background(), "note-1", "after", "new body")
	if err == nil {
		t.Fatalf("expected conflict error")
	}
	if !errors.Is(err, notes.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMoveToRecycleBinTranslatesRevisionConflict(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("note-1").WillReturn(mockdb.DocumentT(t, storedNoteJSON))
	db.ExpectPut().WithDocID("note-1").WillReturnError(&statusError{
		status:  http.StatusConflict,
		message: "Conflict: Document update conflict.",
	})

	_, err := repo.MoveToRecycleBin(context.Background(), "note-1")
	if !errors.Is(err, notes.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMoveToRecycleBinReportsNotFoundWhenDocumentVanishes(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("note-1").WillReturn(mockdb.DocumentT(t, storedNoteJSON))
	db.ExpectPut().WithDocID("note-1").WillReturnError(&statusError{
		status:  http.StatusNotFound,
		message: "Not Found: deleted",
	})

	found, err := repo.MoveToRecycleBin(context.Background(), "note-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not-found when the document vanished between fetch and write")
	}
}

func TestPermanentDeleteTranslatesRevisionConflict(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("note-1").WillReturn(mockdb.DocumentT(t, storedNoteJSON))
	db.ExpectDelete().WithDocID("note-1").WillReturnError(&statusError{
		status:  http.StatusConflict,
		message: "Conflict: Document update conflict.",
	})

	_, err := repo.PermanentDelete(context.Background(), "note-1")
	if !errors.Is(err, notes.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPermanentDeleteReportsNotFoundWhenDocumentVanishes(t *testing.T) {
	repo, db := mockRepository(t)
	db.ExpectGet().WithDocID("note-1").WillReturn(mockdb.DocumentT(t, storedNoteJSON))
	db.ExpectDelete().WithDocID("note-1").WillReturnError(&statusError{
		status:  http.StatusNotFound,
		message: "Not Found: deleted",
	})

	found, err := repo.PermanentDelete(context.Background(), "note-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected not-found when the document vanished between fetch and delete")
	}
}
