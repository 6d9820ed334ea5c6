package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runConflicts(ctx context.Context) error {
	c.io.Println("=== Conflicts ===")
	c.io.Println()

	conflicts, err := c.bookings.Conflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		c.io.Println("No unresolved conflicts.")
		return nil
	}

	c.io.Printf("Found %d unresolved conflict(s):\n", len(conflicts))
	c.io.Println()

	for i, conflict := range conflicts {
		c.io.Printf("%d. %s (booking %s, detected %s)\n",
			i+1, conflict.ConflictID, conflict.BookingID,
			conflict.DetectedAt.Local().Format(dateTimeFormat))
		c.io.Printf("   local:  %s / %s, price %s, updated %s\n",
			conflict.LocalRecord.CustomerName, conflict.LocalRecord.Service,
			formatMoney(conflict.LocalRecord.PriceCents),
			conflict.LocalRecord.UpdatedAt.Local().Format(dateTimeFormat))
		c.io.Printf("   remote: %s / %s, price %s, updated %s\n",
			conflict.RemoteRecord.CustomerName, conflict.RemoteRecord.Service,
			formatMoney(conflict.RemoteRecord.PriceCents),
			conflict.RemoteRecord.UpdatedAt.Local().Format(dateTimeFormat))
		c.io.Println()
	}

	c.io.Println("Use 'bookkeeper resolve <conflict-id> local|remote' to resolve.")
	return nil
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: bookkeeper resolve <conflict-id> local|remote")
	}
	conflictID := args[0]

	var resolution storage.ConflictResolution
	switch args[1] {
	case "local":
		resolution = storage.ResolutionLocal
	case "remote":
		resolution = storage.ResolutionRemote
	default:
		return fmt.Errorf("unknown resolution %q, expected local or remote", args[1])
	}

	if err := c.bookings.ResolveConflict(ctx, conflictID, resolution, nil); err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	c.io.Printf("Conflict %s resolved (%s).\n", conflictID, resolution)
	return nil
}
