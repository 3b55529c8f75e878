package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"lazycashier/internal/config"
	"lazycashier/internal/models"
	"lazycashier/internal/observability"
)

const ExpensesUpdatedMessage = "Expenses updated successfully"

var (
	ErrNegativeExpenses = errors.New("expenses cannot be negative")
	ErrInvalidAmount    = errors.New("amount must be a finite number")
)

// AnalyticsProvider owns the aggregate record behind the analytics routes.
type AnalyticsProvider interface {
	Variant() string
	Analytics(ctx context.Context) (models.AnalyticsRecord, error)
	UpdateExpenses(ctx context.Context, amount float64) (models.ExpenseReceipt, error)
	Profit(ctx context.Context) (models.ProfitReport, error)
	Stats() Stats
}

// Stats is the provider snapshot exposed on /admin/stats.
type Stats struct {
	Variant          string     `json:"variant"`
	CacheHits        int64      `json:"cache_hits"`
	CacheMisses      int64      `json:"cache_misses"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	ExpenseUpdates   int64      `json:"expense_updates"`
	ExpenseRejects   int64      `json:"expense_rejects"`
	LastExpenseWrite *time.Time `json:"last_expense_write,omitempty"`
}

type Options struct {
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New builds the provider selected by cfg.Variant. The direct variant starts
// from DefaultSeed, overridden by cfg.SeedFile when set.
func New(cfg config.AnalyticsConfig, opts Options) (AnalyticsProvider, error) {
	switch cfg.Variant {
	case config.VariantDirect, "":
		seed := DefaultSeed()
		if cfg.SeedFile != "" {
			loaded, err := LoadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			seed = loaded
		}
		return NewDirectProvider(seed, opts), nil
	case config.VariantStub:
		return NewStubProvider(cfg.CacheDuration, cfg.MemoSize, opts)
	default:
		return nil, fmt.Errorf("unknown analytics variant %q", cfg.Variant)
	}
}

// validateExpenses is the single write-boundary check shared by both variants.
func validateExpenses(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	if amount < 0 {
		return ErrNegativeExpenses
	}
	return nil
}
