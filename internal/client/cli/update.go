package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/models"
)

func (c *Cli) runUpdate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing booking id. Usage: bookkeeper update <id> [flags]")
	}
	id := args[0]

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	customer := fs.String("customer", "", "new customer name")
	service := fs.String("service", "", "new service name")
	startsRaw := fs.String("starts", "", "new start time (YYYY-MM-DD HH:MM)")
	endsRaw := fs.String("ends", "", "new end time (YYYY-MM-DD HH:MM)")
	priceRaw := fs.String("price", "", "new price")
	notes := fs.String("notes", "", "new notes")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var patch models.BookingPatch
	changed := false

	if *customer != "" {
		patch.CustomerName = customer
		changed = true
	}
	if *service != "" {
		patch.Service = service
		changed = true
	}
	if *startsRaw != "" {
		startsAt, err := parseWhen(*startsRaw)
		if err != nil {
			return err
		}
		patch.StartsAt = &startsAt
		changed = true
	}
	if *endsRaw != "" {
		endsAt, err := parseWhen(*endsRaw)
		if err != nil {
			return err
		}
		patch.EndsAt = &endsAt
		changed = true
	}
	if *priceRaw != "" {
		priceCents, err := parseMoney(*priceRaw)
		if err != nil {
			return err
		}
		patch.PriceCents = &priceCents
		changed = true
	}

	// -notes="" тоже валидная правка, отличаем флаг от его отсутствия
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "notes" {
			patch.Notes = notes
			changed = true
		}
	})

	if !changed {
		return fmt.Errorf("nothing to update: pass at least one of -customer, -service, -starts, -ends, -price, -notes")
	}

	updated, err := c.bookings.Update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	c.io.Println("Booking updated:")
	c.io.Println()
	c.printBooking(updated)
	return nil
}
