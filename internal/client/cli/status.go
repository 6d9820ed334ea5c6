package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	sess, err := c.sessions.Current(ctx)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		c.io.Println("Session:   not logged in")
	case err != nil:
		return fmt.Errorf("failed to get session: %w", err)
	default:
		c.io.Printf("Session:   %s (saved %s)\n", sess.Username, sess.SavedAt.Local().Format(dateTimeFormat))
		if expiry, err := c.sessions.Expiry(ctx); err == nil {
			if time.Now().After(expiry) {
				c.io.Println("Token:     expired, run 'bookkeeper login'")
			} else {
				c.io.Printf("Token:     valid until %s\n", expiry.Local().Format(dateTimeFormat))
			}
		}
	}

	pending, err := c.bookings.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending operations: %w", err)
	}
	c.io.Printf("Pending:   %d operation(s)\n", pending)

	conflicts, err := c.bookings.Conflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}
	c.io.Printf("Conflicts: %d unresolved\n", len(conflicts))

	state, err := c.syncState.GetSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync state: %w", err)
	}
	if state.LastFullSyncAt != nil {
		c.io.Printf("Last sync: %s\n", state.LastFullSyncAt.Local().Format(dateTimeFormat))
	} else {
		c.io.Println("Last sync: never")
	}
	if state.LastSyncAttemptAt != nil && (state.LastFullSyncAt == nil || state.LastSyncAttemptAt.After(*state.LastFullSyncAt)) {
		c.io.Printf("Last try:  %s\n", state.LastSyncAttemptAt.Local().Format(dateTimeFormat))
	}
	if state.SyncInProgress {
		c.io.Println("Sync:      in progress")
	}

	return nil
}
