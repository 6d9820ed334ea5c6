package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04"
)

// parseWhen принимает дату или дату со временем
func parseWhen(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateTimeFormat, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}

// parseMoney переводит сумму вида "1500" или "1500.50" в копейки
func parseMoney(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var cents int64
	if hasFrac {
		if len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q: at most two decimal places", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return units*100 + cents, nil
}

func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (c *Cli) printBooking(b *models.Booking) {
	c.io.Printf("ID:        %s\n", b.ID)
	c.io.Printf("Customer:  %s\n", b.CustomerName)
	c.io.Printf("Service:   %s\n", b.Service)
	c.io.Printf("Starts:    %s\n", b.StartsAt.Local().Format(dateTimeFormat))
	c.io.Printf("Ends:      %s\n", b.EndsAt.Local().Format(dateTimeFormat))
	c.io.Printf("Price:     %s\n", formatMoney(b.PriceCents))
	if b.Notes != "" {
		c.io.Printf("Notes:     %s\n", b.Notes)
	}

	if len(b.Payments) > 0 {
		var paid int64
		c.io.Println("Payments:")
		for _, p := range b.Payments {
			paid += p.AmountCents
			line := fmt.Sprintf("  %s  %s  %s", p.RecordedAt.Local().Format(dateTimeFormat), formatMoney(p.AmountCents), p.Method)
			if p.Note != "" {
				line += "  (" + p.Note + ")"
			}
			c.io.Printf("%s  [%s]\n", line, p.EntryID)
		}
		c.io.Printf("Paid:      %s of %s\n", formatMoney(paid), formatMoney(b.PriceCents))
	}

	c.io.Printf("Updated:   %s\n", b.UpdatedAt.Local().Format(time.RFC3339))
}

func (c *Cli) printBookingLine(i int, b *models.Booking) {
	c.io.Printf("%d. %s  %s — %s  %s (%s)\n",
		i+1,
		b.StartsAt.Local().Format(dateTimeFormat),
		b.CustomerName,
		b.Service,
		formatMoney(b.PriceCents),
		b.ID,
	)
}
