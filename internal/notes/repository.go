package notes

import (
	"context"
	"fmt"
)

// Repository is the uniform persistence contract every storage backend
// satisfies. Lookups by identifier never fail for unknown or structurally
// malformed ids: FindByID and Update resolve to nil, the boolean operations
// to false. Backend-specific failure shapes do not cross this boundary;
// adapters translate them into the sentinel errors declared in this package.
type Repository interface {
	// Init performs idempotent backend setup (connection, database, views or
	// indexes). It must be called once before any other operation and fails
	// if the backend is unreachable.
	Init(ctx context.Context) error

	// FindAll returns active notes, most recently updated first.
	FindAll(ctx context.Context) ([]Note, error)
	// FindDeleted returns recycle-bin notes, most recently deleted first.
	FindDeleted(ctx context.Context) ([]Note, error)
	// FindAllIncludingDeleted returns every note, most recently updated first.
	FindAllIncludingDeleted(ctx context.Context) ([]Note, error)
	// FindByID returns the note or nil when the id resolves to nothing.
	FindByID(ctx context.Context, id string) (*Note, error)

	// Create persists a new active note. The backend assigns the id and both
	// timestamps are set to the current time.
	Create(ctx context.Context, title, content string) (*Note, error)
	// Update replaces title and content, advances UpdatedAt, and preserves
	// CreatedAt and DeletedAt. Returns nil when the id resolves to nothing.
	Update(ctx context.Context, id, title, content string) (*Note, error)

	// MoveToRecycleBin stamps DeletedAt and reports whether a note was found.
	MoveToRecycleBin(ctx context.Context, id string) (bool, error)
	// Restore clears DeletedAt and reports whether a note was found.
	Restore(ctx context.Context, id string) (bool, error)
	// PermanentDelete removes the record entirely. The id never resolves again.
	PermanentDelete(ctx context.Context, id string) (bool, error)

	// EmptyRecycleBin permanently deletes every recycle-bin note and returns
	// the number removed.
	EmptyRecycleBin(ctx context.Context) (int, error)
	// RestoreAll clears DeletedAt on every recycle-bin note and returns the
	// number affected.
	RestoreAll(ctx context.Context) (int, error)
	// CountDeleted returns the number of recycle-bin notes.
	CountDeleted(ctx context.Context) (int, error)
}

// Unsupported satisfies Repository by failing every operation with
// ErrUnsupported. Adapters embed it so a backend that implements only part of
// the contract fails loudly instead of passing off empty results as answers.
type Unsupported struct{}

var _ Repository = Unsupported{}

func (Unsupported) Init(context.Context) error {
	return unsupported("Init")
}

func (Unsupported) FindAll(context.Context) ([]Note, error) {
	return nil, unsupported("FindAll")
}

func (Unsupported) FindDeleted(context.Context) ([]Note, error) {
	return nil, unsupported("FindDeleted")
}

func (Unsupported) FindAllIncludingDeleted(context.Context) ([]Note, error) {
	return nil, unsupported("FindAllIncludingDeleted")
}

func (Unsupported) FindByID(context.Context, string) (*Note, error) {
	return nil, unsupported("FindByID")
}

func (Unsupported) Create(context.Context, string, string) (*Note, error) {
	return nil, unsupported("Create")
}

func (Unsupported) Update(context.Context, string, string, string) (*Note, error) {
	return nil, unsupported("Update")
}

func (Unsupported) MoveToRecycleBin(context.Context, string) (bool, error) {
	return false, unsupported("MoveToRecycleBin")
}

func (Unsupported) Restore(context.Context, string) (bool, error) {
	return false, unsupported("Restore")
}

func (Unsupported) PermanentDelete(context.Context, string) (bool, error) {
	return false, unsupported("PermanentDelete")
}

func (Unsupported) EmptyRecycleBin(context.Context) (int, error) {
	return 0, unsupported("EmptyRecycleBin")
}

func (Unsupported) RestoreAll(context.Context) (int, error) {
	return 0, unsupported("RestoreAll")
}

func (Unsupported) CountDeleted(context.Context) (int, error) {
	return 0, unsupported("CountDeleted")
}

func unsupported(operation string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, operation)
}
