package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/models"
)

func (c *Cli) runPay(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: bookkeeper pay <booking-id> add -amount N [-method M] [-note S]\n" +
			"       bookkeeper pay <booking-id> remove <entry-id>")
	}
	bookingID := args[0]
	action := args[1]

	switch action {
	case "add":
		return c.runPayAdd(ctx, bookingID, args[2:])
	case "remove":
		if len(args) < 3 {
			return fmt.Errorf("missing entry id. Usage: bookkeeper pay <booking-id> remove <entry-id>")
		}
		return c.runPayRemove(ctx, bookingID, args[2])
	default:
		return fmt.Errorf("unknown pay action: %s. Use: add or remove", action)
	}
}

func (c *Cli) runPayAdd(ctx context.Context, bookingID string, args []string) error {
	fs := flag.NewFlagSet("pay add", flag.ContinueOnError)
	amountRaw := fs.String("amount", "", "payment amount")
	method := fs.String("method", "cash", "payment method (cash, card, transfer)")
	note := fs.String("note", "", "optional note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *amountRaw == "" {
		return fmt.Errorf("missing -amount")
	}
	amountCents, err := parseMoney(*amountRaw)
	if err != nil {
		return err
	}

	updated, err := c.bookings.AddPayment(ctx, bookingID, models.PaymentEntry{
		AmountCents: amountCents,
		Method:      *method,
		Note:        *note,
	})
	if err != nil {
		return fmt.Errorf("failed to add payment: %w", err)
	}

	c.io.Println("Payment recorded:")
	c.io.Println()
	c.printBooking(updated)
	return nil
}

func (c *Cli) runPayRemove(ctx context.Context, bookingID, entryID string) error {
	updated, err := c.bookings.RemovePayment(ctx, bookingID, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove payment: %w", err)
	}

	c.io.Println("Payment removed:")
	c.io.Println()
	c.printBooking(updated)
	return nil
}
