// Package report aggregates gateway sale lists into the figures the dashboard
// shows. Everything here is a pure computation over small in-memory slices.
package report

import (
	"time"

	"bumdespos/terminal/internal/domain"
)

// localDay truncates a timestamp to its calendar day in loc, formatted
// YYYY-MM-DD. Bucketing on the viewer's local day keeps the chart boundaries
// aligned with what the cashier thinks of as "today".
func localDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// AggregateDaily buckets sales into spanDays consecutive calendar-day totals
// ending at today in loc, oldest first. Sales outside the span are ignored.
func AggregateDaily(sales []domain.Sale, spanDays int, loc *time.Location) []domain.DailyBucket {
	if spanDays < 1 {
		spanDays = 1
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	buckets := make([]domain.DailyBucket, 0, spanDays)
	index := make(map[string]int, spanDays)
	for i := spanDays - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format("2006-01-02")
		index[key] = len(buckets)
		buckets = append(buckets, domain.DailyBucket{Date: key})
	}

	for _, s := range sales {
		if i, ok := index[localDay(s.Date, loc)]; ok {
			buckets[i].Total += s.GrandTotal
		}
	}
	return buckets
}

// TodayTotal sums grand totals of sales whose local date is today in loc.
func TodayTotal(sales []domain.Sale, loc *time.Location) int64 {
	today := localDay(time.Now(), loc)
	var total int64
	for _, s := range sales {
		if localDay(s.Date, loc) == today {
			total += s.GrandTotal
		}
	}
	return total
}

// TodayCount counts today's sales in loc.
func TodayCount(sales []domain.Sale, loc *time.Location) int {
	today := localDay(time.Now(), loc)
	count := 0
	for _, s := range sales {
		if localDay(s.Date, loc) == today {
			count++
		}
	}
	return count
}

// LowStock lists products at or below the threshold, in input order.
func LowStock(products []domain.Product, threshold int) []domain.Product {
	out := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.StockQty <= threshold {
			out = append(out, p)
		}
	}
	return out
}

// NearExpiry lists products expiring within the window from today in loc.
// Products without an expiry date never match.
func NearExpiry(products []domain.Product, window time.Duration, loc *time.Location) []domain.Product {
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	cutoff := today.Add(window)

	out := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.ExpiryDate == nil {
			continue
		}
		if !p.ExpiryDate.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
