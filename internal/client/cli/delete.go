package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing booking id. Usage: bookkeeper delete <id>")
	}
	id := args[0]

	b, err := c.bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return fmt.Errorf("booking %s not found", id)
		}
		return err
	}

	ok, err := c.io.Confirm(fmt.Sprintf("Delete booking %q for %s?", b.Service, b.CustomerName))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		c.io.Println("Cancelled.")
		return nil
	}

	if err := c.bookings.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	c.io.Println("Booking deleted.")
	return nil
}
