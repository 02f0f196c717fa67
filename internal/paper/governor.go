package paper

import (
	"b5factor/internal/config"
	"b5factor/internal/db"
)

// Governor statuses.
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusRed    = "red"
)

// LimitsStatus is the broker-limits governor's verdict for a day.
type LimitsStatus struct {
	Day                string  `json:"day"`
	Status             string  `json:"status"`
	Safe               bool    `json:"safe"`
	OrdersPlaced       int     `json:"orders_placed"`
	OrdersLimit        int     `json:"orders_limit"`
	OrdersRemaining    int     `json:"orders_remaining"`
	OpenPositions      int     `json:"open_positions"`
	PositionsLimit     int     `json:"positions_limit"`
	PositionsRemaining int     `json:"positions_remaining"`
	MarginUsed         float64 `json:"margin_used"`
	MaxMarginUsedPct   float64 `json:"max_margin_used_pct"`
}

// EvaluateLimits grades the day's counters against the configured limits.
// Red means entries are blocked; yellow is a warning only. The margin cap is
// advisory and never changes the grade.
func EvaluateLimits(bl *db.BrokerLimits, cfg *config.Config) *LimitsStatus {
	s := &LimitsStatus{
		Day:              bl.Day,
		OrdersPlaced:     bl.OrdersPlaced,
		OrdersLimit:      cfg.MaxOrdersPerDay,
		OpenPositions:    bl.OpenPositions,
		PositionsLimit:   cfg.MaxOpenPositions,
		MarginUsed:       bl.MarginUsed,
		MaxMarginUsedPct: cfg.MaxMarginUsedPct,
	}
	s.OrdersRemaining = max(0, s.OrdersLimit-s.OrdersPlaced)
	s.PositionsRemaining = max(0, s.PositionsLimit-s.OpenPositions)

	ordersFrac := remainingFrac(s.OrdersRemaining, s.OrdersLimit)
	positionsFrac := remainingFrac(s.PositionsRemaining, s.PositionsLimit)

	switch {
	case ordersFrac < 0.20 || positionsFrac < 0.20:
		s.Status = StatusRed
	case ordersFrac < 0.50 || positionsFrac < 0.50:
		s.Status = StatusYellow
	default:
		s.Status = StatusGreen
	}
	s.Safe = s.Status != StatusRed
	return s
}

func remainingFrac(remaining, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(remaining) / float64(limit)
}
