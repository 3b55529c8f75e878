package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazycashier/internal/config"
	"lazycashier/internal/models"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_SelectsVariant(t *testing.T) {
	direct, err := New(config.AnalyticsConfig{Variant: config.VariantDirect}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &DirectProvider{}, direct)

	stub, err := New(config.AnalyticsConfig{
		Variant:       config.VariantStub,
		CacheDuration: 5 * time.Minute,
		MemoSize:      100,
	}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &StubProvider{}, stub)

	_, err = New(config.AnalyticsConfig{Variant: "redis"}, Options{})
	require.Error(t, err)
}

func TestNew_SeedFile(t *testing.T) {
	path := writeSeed(t, "total_revenue: 800.5\nmost_popular_item: Bagel\n")

	p, err := New(config.AnalyticsConfig{Variant: config.VariantDirect, SeedFile: path}, Options{})
	require.NoError(t, err)

	record, err := p.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AnalyticsRecord{
		TotalRevenue:      800.5,
		TotalTransactions: 156,
		MostPopularItem:   "Bagel",
		Expenses:          0,
	}, record)
}

func TestNew_MissingSeedFile(t *testing.T) {
	_, err := New(config.AnalyticsConfig{
		Variant:  config.VariantDirect,
		SeedFile: filepath.Join(t.TempDir(), "absent.yaml"),
	}, Options{})
	require.Error(t, err)
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "total_revenue: [1, 2"},
		{"negative revenue", "total_revenue: -1\n"},
		{"negative transactions", "total_transactions: -3\n"},
		{"negative expenses", "expenses: -10\n"},
		{"nan revenue", "total_revenue: .nan\n"},
		{"infinite revenue", "total_revenue: .inf\n"},
		{"infinite expenses", "expenses: .inf\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestNew_NonFiniteSeedIsConfigError(t *testing.T) {
	path := writeSeed(t, "total_revenue: .nan\n")

	var err error
	require.NotPanics(t, func() {
		_, err = New(config.AnalyticsConfig{Variant: config.VariantDirect, SeedFile: path}, Options{})
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLoadSeed_NegativeExpensesWrapsSentinel(t *testing.T) {
	_, err := LoadSeed(writeSeed(t, "expenses: -10\n"))
	assert.ErrorIs(t, err, ErrNegativeExpenses)
}
