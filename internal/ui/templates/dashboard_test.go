package templates

import (
	"context"
	"math"
	"strings"
	"testing"

	"lazycashier/internal/models"
)

func TestDashboard(t *testing.T) {
	var buf strings.Builder
	if err := Dashboard("LazyCashier <Analytics>").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	html := buf.String()
	if !strings.HasPrefix(strings.ToLower(html), "<!doctype html>") {
		t.Errorf("page should start with a doctype, got %.40q", html)
	}
	for _, want := range []string{
		"LazyCashier &lt;Analytics&gt;",
		`id="analytics-summary"`,
		"/sse/live",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
}

func TestSummary(t *testing.T) {
	record := models.AnalyticsRecord{
		TotalRevenue:      12500,
		TotalTransactions: 156,
		MostPopularItem:   "Coffee & Cake",
		Expenses:          200,
	}
	profit := &models.ProfitReport{Profit: 12300}

	var buf strings.Builder
	if err := Summary(record, profit).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		`<div id="analytics-summary">`,
		"$12500.00",
		"156",
		"Coffee &amp; Cake",
		"$200.00",
		"<dt>Profit</dt><dd>$12300.00</dd>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected summary to contain %q, got %s", want, html)
		}
	}
}

func TestSummary_WithoutProfit(t *testing.T) {
	var buf strings.Builder
	if err := Summary(models.AnalyticsRecord{}, nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}

	html := buf.String()
	if strings.Contains(html, "Profit") {
		t.Error("summary without profit should omit the profit row")
	}
	if !strings.Contains(html, "<dt>Most popular item</dt><dd>-</dd>") {
		t.Errorf("empty item should render as a dash, got %s", html)
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{12500, "$12500.00"},
		{0, "$0.00"},
		{0.125, "$0.13"},
		{-42.5, "$-42.50"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
	}

	for _, tt := range tests {
		if got := money(tt.amount); got != tt.want {
			t.Errorf("money(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
