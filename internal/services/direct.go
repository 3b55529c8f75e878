package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"lazycashier/internal/config"
	"lazycashier/internal/models"
	"lazycashier/internal/observability"
)

// DirectProvider serves one mutable record. Every read reflects the latest
// accepted expense write; nothing is cached.
type DirectProvider struct {
	mu     sync.RWMutex
	record models.AnalyticsRecord

	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	updates   atomic.Int64
	rejects   atomic.Int64
	lastWrite atomic.Pointer[time.Time]
}

func NewDirectProvider(seed models.AnalyticsRecord, opts Options) *DirectProvider {
	opts = opts.withDefaults()
	return &DirectProvider{
		record:  seed,
		clock:   opts.Clock,
		logger:  opts.Logger.With("component", "analytics", "variant", config.VariantDirect),
		metrics: opts.Metrics,
	}
}

func (p *DirectProvider) Variant() string {
	return config.VariantDirect
}

func (p *DirectProvider) Analytics(ctx context.Context) (models.AnalyticsRecord, error) {
	_, span := observability.StartSpan(ctx, "analytics.read")
	defer span.End()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.record, nil
}

func (p *DirectProvider) UpdateExpenses(ctx context.Context, amount float64) (models.ExpenseReceipt, error) {
	_, span := observability.StartSpan(ctx, "analytics.update_expenses",
		attribute.Float64("expenses", amount))
	defer span.End()

	if err := validateExpenses(amount); err != nil {
		p.rejects.Add(1)
		p.metrics.RecordExpenseUpdate(observability.ExpenseRejected)
		observability.RecordError(span, err)
		return models.ExpenseReceipt{}, err
	}

	p.mu.Lock()
	p.record.Expenses = amount
	p.mu.Unlock()

	now := p.clock.Now()
	p.lastWrite.Store(&now)
	p.updates.Add(1)
	p.metrics.RecordExpenseUpdate(observability.ExpenseAccepted)
	observability.RequestLogger(ctx, p.logger).Info("expenses updated", "expenses", amount)

	return models.ExpenseReceipt{
		Message:  ExpensesUpdatedMessage,
		Expenses: &amount,
	}, nil
}

func (p *DirectProvider) Profit(ctx context.Context) (models.ProfitReport, error) {
	_, span := observability.StartSpan(ctx, "analytics.profit")
	defer span.End()

	p.mu.RLock()
	revenue := p.record.TotalRevenue
	expenses := p.record.Expenses
	p.mu.RUnlock()

	return models.ProfitReport{
		TotalRevenue: &revenue,
		Expenses:     &expenses,
		Profit:       revenue - expenses,
	}, nil
}

func (p *DirectProvider) Stats() Stats {
	return Stats{
		Variant:          config.VariantDirect,
		ExpenseUpdates:   p.updates.Load(),
		ExpenseRejects:   p.rejects.Load(),
		LastExpenseWrite: p.lastWrite.Load(),
	}
}
