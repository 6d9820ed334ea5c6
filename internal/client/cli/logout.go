package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	if _, err := c.sessions.Current(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			c.io.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	// Несинхронизированные правки переживают logout: они уйдут на сервер
	// после следующего логина
	pending, err := c.bookings.PendingCount(ctx)
	if err == nil && pending > 0 {
		c.io.Printf("Warning: %d unsynced operation(s) will be pushed after the next login.\n", pending)
	}

	if err := c.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	c.io.Println("Logged out.")
	return nil
}
