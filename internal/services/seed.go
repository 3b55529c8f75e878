package services

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"lazycashier/internal/models"
)

// DefaultSeed is the record the direct variant starts from.
func DefaultSeed() models.AnalyticsRecord {
	return models.AnalyticsRecord{
		TotalRevenue:      12500.0,
		TotalTransactions: 156,
		MostPopularItem:   "Coffee",
		Expenses:          0,
	}
}

// LoadSeed reads a YAML seed file. Fields missing from the file keep their
// DefaultSeed values.
func LoadSeed(path string) (models.AnalyticsRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AnalyticsRecord{}, fmt.Errorf("read seed file: %w", err)
	}

	seed := DefaultSeed()
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return models.AnalyticsRecord{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	if math.IsNaN(seed.TotalRevenue) || math.IsInf(seed.TotalRevenue, 0) {
		return models.AnalyticsRecord{}, fmt.Errorf("seed total_revenue: %w, got %v", ErrInvalidAmount, seed.TotalRevenue)
	}
	if seed.TotalRevenue < 0 {
		return models.AnalyticsRecord{}, fmt.Errorf("seed total_revenue must not be negative, got %v", seed.TotalRevenue)
	}
	if seed.TotalTransactions < 0 {
		return models.AnalyticsRecord{}, fmt.Errorf("seed total_transactions must not be negative, got %d", seed.TotalTransactions)
	}
	if err := validateExpenses(seed.Expenses); err != nil {
		return models.AnalyticsRecord{}, fmt.Errorf("seed expenses: %w", err)
	}

	return seed, nil
}
