package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

func (c *Cli) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fromRaw := fs.String("from", "", "show bookings starting at or after this date")
	toRaw := fs.String("to", "", "show bookings starting before this date")
	service := fs.String("service", "", "filter by exact service name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := &storage.ListFilter{Service: *service}
	if *fromRaw != "" {
		from, err := parseWhen(*fromRaw)
		if err != nil {
			return err
		}
		filter.From = &from
	}
	if *toRaw != "" {
		to, err := parseWhen(*toRaw)
		if err != nil {
			return err
		}
		filter.To = &to
	}

	bookings, err := c.bookings.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}

	if len(bookings) == 0 {
		c.io.Println("No bookings found.")
		return nil
	}

	c.io.Printf("Found %d booking(s):\n", len(bookings))
	c.io.Println()

	var total int64
	for i, b := range bookings {
		c.printBookingLine(i, b)
		total += b.PriceCents
	}

	c.io.Println()
	c.io.Printf("Total: %s\n", formatMoney(total))
	return nil
}
