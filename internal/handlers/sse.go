package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/starfederation/datastar-go/datastar"

	"lazycashier/internal/models"
	"lazycashier/internal/services"
	"lazycashier/internal/ui/templates"
)

type SSEHandlers struct {
	provider services.AnalyticsProvider
	logger   *slog.Logger
	clock    clockwork.Clock
	interval time.Duration
}

func NewSSEHandlers(provider services.AnalyticsProvider, logger *slog.Logger, clock clockwork.Clock, interval time.Duration) *SSEHandlers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SSEHandlers{
		provider: provider,
		logger:   logger,
		clock:    clock,
		interval: interval,
	}
}

func (h *SSEHandlers) renderSummary(ctx context.Context, record models.AnalyticsRecord, profit *models.ProfitReport) (string, error) {
	var buf strings.Builder
	err := templates.Summary(record, profit).Render(ctx, &buf)
	return buf.String(), err
}

func (h *SSEHandlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	record, err := h.provider.Analytics(r.Context())
	if err != nil {
		h.logger.Error("read analytics", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"analytics": record})
	if err != nil {
		h.logger.Error("marshal analytics signals", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	html, err := h.renderSummary(r.Context(), record, nil)
	if err != nil {
		h.logger.Error("render analytics summary", "error", err)
		return
	}
	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleProfit(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	report, err := h.provider.Profit(r.Context())
	if err != nil {
		h.logger.Error("calculate profit", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"profit": report})
	if err != nil {
		h.logger.Error("marshal profit signals", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleLive pushes the analytics record, the profit report and the rendered
// summary immediately and then on every interval until the client goes away.
func (h *SSEHandlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	ctx := r.Context()

	if !h.pushSnapshot(ctx, w, sse) {
		return
	}

	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("live stream closed", "reason", ctx.Err())
			return
		case <-ticker.Chan():
			if !h.pushSnapshot(ctx, w, sse) {
				return
			}
		}
	}
}

func (h *SSEHandlers) pushSnapshot(ctx context.Context, w http.ResponseWriter, sse *datastar.ServerSentEventGenerator) bool {
	record, err := h.provider.Analytics(ctx)
	if err != nil {
		h.logger.Error("read analytics", "error", err)
		return false
	}

	report, err := h.provider.Profit(ctx)
	if err != nil {
		h.logger.Error("calculate profit", "error", err)
		return false
	}

	allSignals, err := json.Marshal(map[string]any{
		"analytics": record,
		"profit":    report,
	})
	if err != nil {
		h.logger.Error("marshal live signals", "error", err)
		return false
	}
	if err := sse.PatchSignals(allSignals); err != nil {
		h.logger.Debug("live stream write failed", "error", err)
		return false
	}

	html, err := h.renderSummary(ctx, record, &report)
	if err != nil {
		h.logger.Error("render analytics summary", "error", err)
		return false
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Debug("live stream write failed", "error", err)
		return false
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return true
}
