package main

import (
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/basketcase/internal/audit"
	"github.com/angelmondragon/basketcase/internal/inflation"
	"github.com/angelmondragon/basketcase/internal/refresh"
	"github.com/angelmondragon/basketcase/pkg/db/models"
)

func orNA(value *string) string {
	if value == nil || *value == "" {
		return "N/A"
	}
	return *value
}

func renderStores(w io.Writer, stores []models.Store) {
	fmt.Fprintln(w, "\nNearby Stores:")
	if len(stores) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, s := range stores {
		fmt.Fprintf(w, "- %s (ID: %s)\n", s.Name, s.StoreID)
		fmt.Fprintf(w, "  %s, %s\n", orNA(s.Address), orNA(s.PostalCode))
	}
}

func renderProducts(w io.Writer, products []models.Product) {
	fmt.Fprintln(w, "\nProducts Found:")
	if len(products) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "- %s\n", p.Name)
		fmt.Fprintf(w, "  ID: %s\n", p.ProductID)
		fmt.Fprintf(w, "  UPC: %s\n", orNA(p.UPC))
		fmt.Fprintf(w, "  Brand: %s\n", orNA(p.Brand))
		fmt.Fprintf(w, "  Size: %s\n", orNA(p.Size))
	}
}

func renderBaskets(w io.Writer, baskets []models.Basket) {
	if len(baskets) == 0 {
		fmt.Fprintln(w, "No baskets.")
		return
	}
	for _, b := range baskets {
		kind := ""
		if b.IsTemplate {
			kind = " [template]"
		}
		fmt.Fprintf(w, "%s  %s  store %s  created %s%s\n",
			b.ID, b.Name, b.StoreID, b.CreatedAt.UTC().Format(time.DateOnly), kind)
	}
}

func renderAddedItem(w io.Writer, item *models.BasketItem, seeded *models.PricePoint) {
	fmt.Fprintln(w, "\nAdded to basket:")
	fmt.Fprintf(w, "Product ID: %s\n", item.ProductID)
	fmt.Fprintf(w, "Quantity: %d\n", item.Quantity)
	if seeded != nil {
		fmt.Fprintf(w, "Current Price: $%s\n", seeded.Price.StringFixed(2))
	}
}

func renderInflation(w io.Writer, basketName string, result *inflation.Result) {
	fmt.Fprintf(w, "\nInflation Report for Basket: %s\n", basketName)
	fmt.Fprintf(w, "Calculated At: %s\n", result.CalculatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(w, "\nOverall Basket:")
	fmt.Fprintf(w, "Base Index: %.1f (at %s)\n", result.BaseIndex, result.BaseDate.UTC().Format(time.DateOnly))
	fmt.Fprintf(w, "Current Index: %.1f\n", result.CurrentIndex)
	fmt.Fprintf(w, "Change: %+.1f%%\n", result.InflationPercent)
	if result.ItemsSkipped > 0 {
		fmt.Fprintf(w, "Items without price data: %d\n", result.ItemsSkipped)
	}
	if len(result.Categories) == 0 {
		return
	}
	fmt.Fprintln(w, "\nBy Category:")
	for _, cat := range result.Categories {
		name := cat.CategoryName
		if name == "" {
			name = cat.CategoryID.String()
		}
		fmt.Fprintf(w, "%s: %+.1f%% (Index: %.1f)\n", name, cat.InflationPercent, cat.CurrentIndex)
	}
}

func renderPrices(w io.Writer, points []models.PricePoint) {
	if len(points) == 0 {
		fmt.Fprintln(w, "No price history.")
		return
	}
	for _, p := range points {
		line := fmt.Sprintf("%s  $%s", p.CapturedAt.UTC().Format(time.RFC3339), p.Price.StringFixed(2))
		if p.PromoPrice.Valid {
			line += fmt.Sprintf("  (promo $%s)", p.PromoPrice.Decimal.StringFixed(2))
		}
		fmt.Fprintln(w, line)
	}
}

func renderSummary(w io.Writer, s *refresh.Summary) {
	fmt.Fprintln(w, "Price refresh:")
	fmt.Fprintf(w, "Stores: %d (%d failed)\n", s.Stores, s.StoresFailed)
	fmt.Fprintf(w, "Products: %d\n", s.Products)
	fmt.Fprintf(w, "Appended: %d\n", s.Appended)
	fmt.Fprintf(w, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}

func renderErrors(w io.Writer, result *audit.ListResult) {
	if len(result.Items) == 0 {
		fmt.Fprintln(w, "No errors logged.")
		return
	}
	for _, e := range result.Items {
		state := "open"
		if e.Resolved {
			state = "resolved"
		}
		fmt.Fprintf(w, "%s  %s  %-5s %-10s %-8s %s\n",
			e.ID, e.LoggedAt.UTC().Format(time.RFC3339), e.Level, e.Component, state, e.Message)
	}
	if result.Cursor != "" {
		fmt.Fprintf(w, "next cursor: %s\n", result.Cursor)
	}
}
