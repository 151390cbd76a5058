package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"propfinder/server/internal/format"
	"propfinder/server/internal/presentation"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCardTable prints result cards as a formatted table.
func printCardTable(out io.Writer, cards []presentation.Card) error {
	if len(cards) == 0 {
		fmt.Fprintln(out, "No properties found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "NAME\tLOCALITY\tBHK\tSIZE\tPRICE\tPER SQFT\tFUTURE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "----\t--------\t---\t----\t-----\t--------\t------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, c := range cards {
		locality := c.Locality
		if locality == "" {
			locality = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncate(c.Name, 40), truncate(locality, 24), c.Bedrooms, c.SizeText,
			c.PriceText, c.PricePerAreaText, c.FuturePriceText); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d properties\n", len(cards))
	return nil
}

func formatPriceOrDash(price float64) string {
	if price <= 0 {
		return "-"
	}
	return format.Price(price)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
