package models

import "time"

// AnalyticsRecord is the process-wide aggregate served by GET /api/analytics.
type AnalyticsRecord struct {
	TotalRevenue      float64 `json:"total_revenue" yaml:"total_revenue"`
	TotalTransactions int     `json:"total_transactions" yaml:"total_transactions"`
	MostPopularItem   string  `json:"most_popular_item" yaml:"most_popular_item"`
	Expenses          float64 `json:"expenses" yaml:"expenses"`
}

// CacheEnvelope wraps a record with the time it was captured.
type CacheEnvelope struct {
	Record     AnalyticsRecord `json:"data"`
	CapturedAt time.Time       `json:"timestamp"`
}

// Fresh reports whether the envelope is still inside the staleness window at now.
func (e *CacheEnvelope) Fresh(now time.Time, window time.Duration) bool {
	if e == nil {
		return false
	}
	return now.Sub(e.CapturedAt) < window
}

// ProfitReport is the body of GET /api/analytics/profit. The stub variant
// only ever fills Profit.
type ProfitReport struct {
	TotalRevenue *float64 `json:"total_revenue,omitempty"`
	Expenses     *float64 `json:"expenses,omitempty"`
	Profit       float64  `json:"profit"`
}

// ExpenseReceipt acknowledges POST /api/analytics/expenses.
type ExpenseReceipt struct {
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message"`
	Expenses *float64 `json:"expenses,omitempty"`
}

type Welcome struct {
	Message string `json:"message"`
}
