package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing booking id. Usage: bookkeeper get <id>")
	}
	id := args[0]

	b, err := c.bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return fmt.Errorf("booking %s not found", id)
		}
		return err
	}

	c.printBooking(b)

	// Подсказываем, если по записи висит конфликт
	conflicts, err := c.bookings.Conflicts(ctx)
	if err == nil {
		for _, conflict := range conflicts {
			if conflict.BookingID == id {
				c.io.Println()
				c.io.Printf("Note: this booking has an unresolved conflict (%s). Run 'bookkeeper conflicts'.\n", conflict.ConflictID)
				break
			}
		}
	}
	return nil
}
