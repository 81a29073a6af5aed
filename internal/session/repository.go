package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session cannot be found by ID.
var ErrSessionNotFound = errors.New("session not found")

// Repository defines the interface for session lookup. It acts as a port in
// the hexagonal architecture pattern. Sessions are live aggregates carrying
// internally synchronized engines, so implementations hand out the stored
// aggregate itself rather than snapshots.
type Repository interface {
	// Save registers a session. An existing session with the same ID is
	// replaced.
	Save(ctx context.Context, sess *Session) error

	// FindByID retrieves a session by its unique identifier.
	// Returns ErrSessionNotFound if the session does not exist.
	FindByID(ctx context.Context, id string) (*Session, error)

	// List returns all open sessions.
	List(ctx context.Context) ([]*Session, error)

	// Delete removes a session.
	// Returns ErrSessionNotFound if the session does not exist.
	Delete(ctx context.Context, id string) error
}
