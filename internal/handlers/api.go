package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lazycashier/internal/config"
	"lazycashier/internal/errors"
	"lazycashier/internal/models"
	"lazycashier/internal/observability"
	"lazycashier/internal/services"
)

const (
	WelcomeMessage         = "Welcome to LazyCashier Backend"
	NegativeExpensesDetail = "Expenses cannot be negative"

	expensesParam       = "expenses"
	legacyExpensesParam = "expense"
	maxBodyBytes        = 1 << 20
)

var (
	errMissingExpenses = stderrors.New("missing expenses parameter")
	errMalformedBody   = stderrors.New("malformed request body")
)

type APIHandlers struct {
	provider services.AnalyticsProvider
	logger   *slog.Logger
	version  string
}

func NewAPIHandlers(provider services.AnalyticsProvider, logger *slog.Logger, version string) *APIHandlers {
	return &APIHandlers{
		provider: provider,
		logger:   logger,
		version:  version,
	}
}

func (h *APIHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, models.Welcome{Message: WelcomeMessage}, nil)
}

func (h *APIHandlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	record, err := h.provider.Analytics(r.Context())
	if err != nil {
		h.fail(w, r, errors.InternalFaultWrap(err))
		return
	}

	h.write(w, r, record, map[string]string{"Cache-Control": h.analyticsCacheControl()})
}

func (h *APIHandlers) HandleUpdateExpenses(w http.ResponseWriter, r *http.Request) {
	amount, err := parseExpenses(w, r, h.provider.Variant() == config.VariantStub)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	receipt, err := h.provider.UpdateExpenses(r.Context(), amount)
	switch {
	case err == nil:
		h.write(w, r, receipt, nil)
	case stderrors.Is(err, services.ErrNegativeExpenses):
		h.fail(w, r, errors.InvalidArgumentWrap(err, NegativeExpensesDetail))
	case stderrors.Is(err, services.ErrInvalidAmount):
		h.fail(w, r, errors.UnprocessableWrap(err, "Input should be a finite number"))
	default:
		h.fail(w, r, errors.InternalFaultWrap(err))
	}
}

// HandleProfit reports any fault in the calculation, including a panic, as a
// 500 whose detail is the fault's description.
func (h *APIHandlers) HandleProfit(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.fail(w, r, errors.InternalFaultWrap(fmt.Errorf("%v", rec)))
		}
	}()

	report, err := h.provider.Profit(r.Context())
	if err != nil {
		h.fail(w, r, errors.InternalFaultWrap(err))
		return
	}

	h.write(w, r, report, nil)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"variant":   h.provider.Variant(),
	}

	h.write(w, r, healthData, nil)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.provider.Stats(), nil)
}

func (h *APIHandlers) analyticsCacheControl() string {
	if h.provider.Variant() == config.VariantStub {
		return "public, max-age=300"
	}
	return "no-store"
}

func (h *APIHandlers) write(w http.ResponseWriter, r *http.Request, data any, headers map[string]string) {
	if err := errors.WriteJSONWithHeaders(w, data, headers); err != nil {
		observability.RequestLogger(r.Context(), h.logger).Error("write response", "error", err)
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// parseExpenses reads the amount from the query string, then a JSON body,
// then a form body. allowLegacy also accepts the older "expense" name. Bodies
// over maxBodyBytes are refused with 413.
func parseExpenses(w http.ResponseWriter, r *http.Request, allowLegacy bool) (float64, error) {
	names := []string{expensesParam}
	if allowLegacy {
		names = append(names, legacyExpensesParam)
	}

	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}

	raw, err := lookupExpenses(r, names)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return 0, errors.TooLargeWrap(err, fmt.Sprintf("Request body must not exceed %d bytes", tooLarge.Limit))
		case stderrors.Is(err, errMissingExpenses):
			return 0, errors.UnprocessableWrap(err, "Field required: expenses")
		default:
			return 0, errors.UnprocessableWrap(err, "Request body could not be parsed")
		}
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.UnprocessableWrap(err, "Input should be a valid number")
	}
	return amount, nil
}

func lookupExpenses(r *http.Request, names []string) (string, error) {
	query := r.URL.Query()
	for _, name := range names {
		if query.Has(name) {
			return query.Get(name), nil
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return "", errMissingExpenses
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return lookupJSON(r, names)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("%w: %w", errMalformedBody, err)
		}
		return lookupForm(r, names)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", fmt.Errorf("%w: %w", errMalformedBody, err)
		}
		return lookupForm(r, names)
	}

	return "", errMissingExpenses
}

func lookupForm(r *http.Request, names []string) (string, error) {
	for _, name := range names {
		if value := r.PostForm.Get(name); value != "" {
			return value, nil
		}
	}
	return "", errMissingExpenses
}

func lookupJSON(r *http.Request, names []string) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", errMissingExpenses
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	for _, name := range names {
		value, ok := fields[name]
		if !ok || string(value) == "null" {
			continue
		}
		// Accept both 12.5 and "12.5".
		var quoted string
		if err := json.Unmarshal(value, &quoted); err == nil {
			return quoted, nil
		}
		return string(value), nil
	}

	return "", errMissingExpenses
}
