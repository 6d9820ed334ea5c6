package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/sync"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	result, err := c.engine.Sync(ctx)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			c.io.Println("Sync is already running.")
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	c.io.Printf("Pushed:    %d\n", result.Pushed)
	c.io.Printf("Pulled:    %d\n", result.Pulled)
	c.io.Printf("Deleted:   %d\n", result.Deleted)
	if result.Conflicts > 0 {
		c.io.Printf("Conflicts: %d  (run 'bookkeeper conflicts')\n", result.Conflicts)
	}
	if result.Failed > 0 {
		c.io.Printf("Failed:    %d  (will retry on the next sync)\n", result.Failed)
	}
	if result.Skipped > 0 {
		c.io.Printf("Skipped:   %d malformed remote record(s)\n", result.Skipped)
	}

	c.io.Println()
	c.io.Println("Sync complete.")
	return nil
}
