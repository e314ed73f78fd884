// Package sessions persists session history snapshots so a conversation
// can be resumed by a later process.
package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/haasonsaas/agentcore/internal/history"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence.
type Store interface {
	// Save replaces the snapshot stored for sessionID.
	Save(ctx context.Context, sessionID string, snap history.Snapshot) error

	// Load returns the stored snapshot or ErrNotFound.
	Load(ctx context.Context, sessionID string) (history.Snapshot, error)

	// Delete removes the snapshot. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Resume restores the stored snapshot for sessionID into mgr. It reports
// false, with a nil error, when nothing was stored.
func Resume(ctx context.Context, store Store, sessionID string, mgr *history.Manager) (bool, error) {
	snap, err := store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := mgr.Restore(snap); err != nil {
		return false, fmt.Errorf("restore session %s: %w", sessionID, err)
	}
	return true, nil
}

func validateID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}
	return nil
}
