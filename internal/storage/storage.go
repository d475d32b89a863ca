// Package storage persists notes, texts and persons and tells listeners about changes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/notesearch/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines record persistence operations.
type Storage interface {
	// Save inserts r when its ID is 0 (assigning ID and timestamps) and
	// updates it otherwise. Listeners are notified after the commit.
	Save(ctx context.Context, r models.Record) error
	Get(ctx context.Context, id models.UniqueID) (models.Record, error)
	// Delete removes a record; listeners are notified after the commit.
	Delete(ctx context.Context, id models.UniqueID) error
	List(ctx context.Context, kind models.Kind, offset, limit int) ([]models.Record, error)

	// Full collections, in id order.
	Notes(ctx context.Context) ([]models.Record, error)
	Texts(ctx context.Context) ([]models.Record, error)
	Persons(ctx context.Context) ([]models.Record, error)

	// TextBySource returns the text imported from the file at path.
	TextBySource(ctx context.Context, path string) (*models.Text, error)

	Count(ctx context.Context, kind models.Kind) (int64, error)

	AddListener(l Listener)
	Close() error
}

// Listener receives record changes after they are committed.
type Listener interface {
	RecordSaved(ctx context.Context, r models.Record) error
	RecordDeleted(ctx context.Context, id models.UniqueID) error
}
