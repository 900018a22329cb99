package notes

import (
	"errors"
	"testing"
	"time"
)

func TestValidateInputAcceptsNonEmptyFields(t *testing.T) {
	if err := ValidateInput("groceries", "milk, eggs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInputRejectsEmptyTitle(t *testing.T) {
	err := ValidateInput("", "milk, eggs")
	if err == nil {
		t.Fatalf("expected error for empty title")
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateInputRejectsBlankContent(t *testing.T) {
	err := ValidateInput("groceries", "   ")
	if err == nil {
		t.Fatalf("expected error for blank content")
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNoteDeletedReflectsDeletedAt(t *testing.T) {
	note := Note{ID: "note-1", Title: "a", Content: "b"}
	if note.Deleted() {
		t.Fatalf("expected active note")
	}

	deletedAt := time.Unix(1700000000, 0).UTC()
	note.DeletedAt = &deletedAt
	if !note.Deleted() {
		t.Fatalf("expected deleted note")
	}
}
