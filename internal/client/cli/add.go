package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/bookkeeper/internal/models"
)

func (c *Cli) runAdd(ctx context.Context, args []string) error {
	c.io.Println("=== New Booking ===")
	c.io.Println()

	customer, err := c.io.ReadInput("Customer name: ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	service, err := c.io.ReadInput("Service: ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	startsRaw, err := c.io.ReadInput("Starts (YYYY-MM-DD HH:MM): ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	startsAt, err := parseWhen(startsRaw)
	if err != nil {
		return err
	}

	endsRaw, err := c.io.ReadInput("Ends (YYYY-MM-DD HH:MM): ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	endsAt, err := parseWhen(endsRaw)
	if err != nil {
		return err
	}

	priceRaw, err := c.io.ReadInput("Price: ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	priceCents, err := parseMoney(priceRaw)
	if err != nil {
		return err
	}

	notes, err := c.io.ReadInput("Notes (optional): ")
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	b := &models.Booking{
		CustomerName: customer,
		Service:      service,
		StartsAt:     startsAt,
		EndsAt:       endsAt,
		PriceCents:   priceCents,
		Notes:        notes,
	}

	created, err := c.bookings.Create(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	c.io.Println()
	c.io.Printf("Booking created: %s\n", created.ID)
	return nil
}
