// Package store persists saved workflow graph definitions: the JSON
// document spec.md §6 describes (nodes/connections/character), not
// the engine's runtime state. Workflow execution is entirely
// in-memory (see workflow.Supervisor); this is the one persistence
// concern spec.md §1 keeps in scope as peripheral-but-present — "the
// workflow store (CRUD + JSON persistence)".
//
// Grounded on the teacher's graph/store/store.go interface shape,
// stripped of the checkpoint/idempotency/outbox surface that exists
// to support durable resumption — out of scope per spec.md's
// Non-goals ("durable resumption after process crash, exactly-once
// semantics across restarts").
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested graph id does not exist.
var ErrNotFound = errors.New("store: not found")

// SavedGraph is one persisted workflow definition (spec.md §6's wire
// format, with an id/name and a timestamp for listing).
type SavedGraph struct {
	ID         string
	Name       string
	Definition []byte // the JSON graph document, opaque to the store
	UpdatedAt  time.Time
}

// Store is the CRUD surface over saved graph definitions.
type Store interface {
	// Save creates or replaces the graph under g.ID.
	Save(ctx context.Context, g SavedGraph) error

	// Load retrieves the graph saved under id.
	// Returns ErrNotFound if id does not exist.
	Load(ctx context.Context, id string) (SavedGraph, error)

	// List returns every saved graph, newest UpdatedAt first.
	List(ctx context.Context) ([]SavedGraph, error)

	// Delete removes the graph saved under id. Deleting an id that
	// does not exist is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources (database connections, file
	// handles) held by the store.
	Close() error
}
