package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"lazycashier/internal/config"
	"lazycashier/internal/models"
	"lazycashier/internal/observability"
)

const slotKey = "data"

// memoKey is the only key the memo ever sees: the lookup takes no arguments.
type memoKey struct{}

// StubProvider serves a zero-valued placeholder through a shared cache slot
// fronted by an argument-less memo.
//
// The memo is filled on the first Analytics call and is never invalidated,
// so the staleness window is only consulted before that first fill. Every
// later call returns the first snapshot for the life of the process, no
// matter how much time has passed. Expense updates are acknowledged and
// dropped.
type StubProvider struct {
	mu     sync.Mutex
	slot   map[string]*models.CacheEnvelope
	memo   *lru.Cache[memoKey, *models.CacheEnvelope]
	window time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
	updates atomic.Int64
	rejects atomic.Int64
}

func NewStubProvider(window time.Duration, memoSize int, opts Options) (*StubProvider, error) {
	opts = opts.withDefaults()

	memo, err := lru.New[memoKey, *models.CacheEnvelope](memoSize)
	if err != nil {
		return nil, fmt.Errorf("create analytics memo: %w", err)
	}

	return &StubProvider{
		slot:    make(map[string]*models.CacheEnvelope),
		memo:    memo,
		window:  window,
		clock:   opts.Clock,
		logger:  opts.Logger.With("component", "analytics", "variant", config.VariantStub),
		metrics: opts.Metrics,
	}, nil
}

func (p *StubProvider) Variant() string {
	return config.VariantStub
}

func (p *StubProvider) Analytics(ctx context.Context) (models.AnalyticsRecord, error) {
	_, span := observability.StartSpan(ctx, "analytics.read")
	defer span.End()

	if env, ok := p.memo.Get(memoKey{}); ok {
		p.hits.Add(1)
		p.metrics.RecordCacheLookup(true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return env.Record, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A concurrent first call may have filled the memo while we waited.
	if env, ok := p.memo.Peek(memoKey{}); ok {
		p.hits.Add(1)
		p.metrics.RecordCacheLookup(true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return env.Record, nil
	}

	p.misses.Add(1)
	p.metrics.RecordCacheLookup(false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	now := p.clock.Now()
	if env := p.slot[slotKey]; env.Fresh(now, p.window) {
		p.memo.Add(memoKey{}, env)
		return env.Record, nil
	}

	env := &models.CacheEnvelope{
		Record:     placeholderRecord(),
		CapturedAt: now,
	}
	p.slot[slotKey] = env
	p.memo.Add(memoKey{}, env)

	p.logger.Debug("analytics snapshot captured", "captured_at", now)
	return env.Record, nil
}

func (p *StubProvider) UpdateExpenses(ctx context.Context, amount float64) (models.ExpenseReceipt, error) {
	_, span := observability.StartSpan(ctx, "analytics.update_expenses",
		attribute.Float64("expenses", amount))
	defer span.End()

	if err := validateExpenses(amount); err != nil {
		p.rejects.Add(1)
		p.metrics.RecordExpenseUpdate(observability.ExpenseRejected)
		observability.RecordError(span, err)
		return models.ExpenseReceipt{}, err
	}

	p.updates.Add(1)
	p.metrics.RecordExpenseUpdate(observability.ExpenseDiscarded)
	observability.RequestLogger(ctx, p.logger).Debug("expenses accepted but not stored", "expenses", amount)

	return models.ExpenseReceipt{
		Status:  "success",
		Message: ExpensesUpdatedMessage,
	}, nil
}

func (p *StubProvider) Profit(ctx context.Context) (models.ProfitReport, error) {
	_, span := observability.StartSpan(ctx, "analytics.profit")
	defer span.End()

	return models.ProfitReport{Profit: 0}, nil
}

func (p *StubProvider) Stats() Stats {
	stats := Stats{
		Variant:        config.VariantStub,
		CacheHits:      p.hits.Load(),
		CacheMisses:    p.misses.Load(),
		ExpenseUpdates: p.updates.Load(),
		ExpenseRejects: p.rejects.Load(),
	}
	if env, ok := p.memo.Peek(memoKey{}); ok {
		captured := env.CapturedAt
		stats.CapturedAt = &captured
	}
	return stats
}

func placeholderRecord() models.AnalyticsRecord {
	return models.AnalyticsRecord{
		TotalRevenue:      0,
		TotalTransactions: 0,
		MostPopularItem:   "",
		Expenses:          0,
	}
}
