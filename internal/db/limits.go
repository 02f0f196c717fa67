package db

import "time"

// BrokerLimits is the per-day order counter row. open_positions and
// margin_used are derived from paper_trades at read time; the stored values
// are a mirror of the last write for external inspection of the DB file.
type BrokerLimits struct {
	Day           string  `json:"day"`
	OrdersPlaced  int     `json:"orders_placed"`
	OpenPositions int     `json:"open_positions"`
	MarginUsed    float64 `json:"margin_used"`
	UpdatedAt     string  `json:"updated_at"`
}

// IncrementOrders bumps the day's orders_placed counter, creating the row on
// first use, and refreshes the derived mirrors.
func (d *DB) IncrementOrders(day string) error {
	open, err := d.OpenPositionsForDay(day)
	if err != nil {
		return err
	}
	margin, err := d.MarginUsedForDay(day)
	if err != nil {
		return err
	}
	_, err = d.sql.Exec(`
		INSERT INTO broker_limits (day, orders_placed, open_positions, margin_used, updated_at)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			orders_placed = orders_placed + 1,
			open_positions = excluded.open_positions,
			margin_used = excluded.margin_used,
			updated_at = excluded.updated_at
	`, day, open, margin, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetBrokerLimits reads the day's counters, recomputing the derived fields
// from paper_trades. A day with no row yet reports all zeros.
func (d *DB) GetBrokerLimits(day string) (*BrokerLimits, error) {
	bl := &BrokerLimits{Day: day}
	d.sql.QueryRow(`
		SELECT orders_placed, updated_at FROM broker_limits WHERE day = ?
	`, day).Scan(&bl.OrdersPlaced, &bl.UpdatedAt)

	open, err := d.OpenPositionsForDay(day)
	if err != nil {
		return nil, err
	}
	margin, err := d.MarginUsedForDay(day)
	if err != nil {
		return nil, err
	}
	bl.OpenPositions = open
	bl.MarginUsed = margin
	return bl, nil
}
