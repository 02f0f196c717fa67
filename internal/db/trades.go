package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Trade statuses.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// PaperTrade is one simulated long position, persisted across restarts.
type PaperTrade struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Tsym           string `json:"tsym,omitempty"`
	Exchange       string `json:"exchange,omitempty"`
	Day            string `json:"day"`
	Timeframe      string `json:"timeframe"`
	Factor         string `json:"factor"`
	InstrumentType string `json:"instrument_type"`

	ClosePrice float64 `json:"close_price"`
	Points     float64 `json:"points"`
	BU1        float64 `json:"bu1"`
	BU2        float64 `json:"bu2"`
	BU3        float64 `json:"bu3"`
	BU4        float64 `json:"bu4"`
	BU5        float64 `json:"bu5"`
	BE1        float64 `json:"be1"`
	BE2        float64 `json:"be2"`
	BE3        float64 `json:"be3"`
	BE4        float64 `json:"be4"`
	BE5        float64 `json:"be5"`

	SLPrice    float64 `json:"sl_price"`
	TPPrice    float64 `json:"tp_price"`
	TSLTrigger float64 `json:"tsl_trigger"`
	TSLActive  bool    `json:"tsl_active"`
	TSLSLPrice float64 `json:"tsl_sl_price"`

	EntryLTP float64 `json:"entry_ltp"`
	EntryTS  int64   `json:"entry_ts"`
	ExitLTP  float64 `json:"exit_ltp"`
	ExitTS   int64   `json:"exit_ts"`
	Quantity int     `json:"quantity"`
	Reason   string  `json:"reason"`

	LastLTP         float64 `json:"last_ltp"`
	MaxLTP          float64 `json:"max_ltp"`
	MinLTP          float64 `json:"min_ltp"`
	Runup           float64 `json:"runup"`
	Drawdown        float64 `json:"drawdown"`
	MaxProfitPoints float64 `json:"max_profit_points"`

	PnL             float64 `json:"pnl"`
	PnLPct          float64 `json:"pnl_pct"`
	Brokerage       float64 `json:"brokerage"`
	STT             float64 `json:"stt"`
	ExchangeCharges float64 `json:"exchange_charges"`
	SEBICharges     float64 `json:"sebi_charges"`
	StampDuty       float64 `json:"stamp_duty"`
	GST             float64 `json:"gst"`
	TotalCharges    float64 `json:"total_charges"`
	NetPnL          float64 `json:"net_pnl"`

	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// TradeSummary aggregates over every persisted trade.
type TradeSummary struct {
	Total       int     `json:"total"`
	Open        int     `json:"open"`
	Closed      int     `json:"closed"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	GrossPnL    float64 `json:"gross_pnl"`
	NetPnL      float64 `json:"net_pnl"`
	TotalCharge float64 `json:"total_charges"`
}

const tradeColumns = `
	id, symbol, tsym, exchange, day, timeframe, factor, instrument_type,
	close_price, points, bu1, bu2, bu3, bu4, bu5, be1, be2, be3, be4, be5,
	sl_price, tp_price, tsl_trigger, tsl_active, tsl_sl_price,
	entry_ltp, entry_ts, exit_ltp, exit_ts, quantity, reason,
	last_ltp, max_ltp, min_ltp, runup, drawdown, max_profit_points,
	pnl, pnl_pct, brokerage, stt, exchange_charges, sebi_charges, stamp_duty, gst, total_charges, net_pnl,
	status, updated_at`

func scanTrade(row interface{ Scan(...any) error }) (*PaperTrade, error) {
	var t PaperTrade
	var tslActive int
	err := row.Scan(
		&t.ID, &t.Symbol, &t.Tsym, &t.Exchange, &t.Day, &t.Timeframe, &t.Factor, &t.InstrumentType,
		&t.ClosePrice, &t.Points, &t.BU1, &t.BU2, &t.BU3, &t.BU4, &t.BU5, &t.BE1, &t.BE2, &t.BE3, &t.BE4, &t.BE5,
		&t.SLPrice, &t.TPPrice, &t.TSLTrigger, &tslActive, &t.TSLSLPrice,
		&t.EntryLTP, &t.EntryTS, &t.ExitLTP, &t.ExitTS, &t.Quantity, &t.Reason,
		&t.LastLTP, &t.MaxLTP, &t.MinLTP, &t.Runup, &t.Drawdown, &t.MaxProfitPoints,
		&t.PnL, &t.PnLPct, &t.Brokerage, &t.STT, &t.ExchangeCharges, &t.SEBICharges, &t.StampDuty, &t.GST, &t.TotalCharges, &t.NetPnL,
		&t.Status, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TSLActive = tslActive != 0
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertTrade persists a new trade row.
func (d *DB) InsertTrade(t *PaperTrade) error {
	if t.ID == "" {
		return fmt.Errorf("trade id required")
	}
	t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	_, err := d.sql.Exec(`
		INSERT INTO paper_trades (`+tradeColumns+`)
		VALUES (?,?,?,?,?,?,?,?,
		        ?,?,?,?,?,?,?,?,?,?,?,?,
		        ?,?,?,?,?,
		        ?,?,?,?,?,?,
		        ?,?,?,?,?,?,
		        ?,?,?,?,?,?,?,?,?,?,
		        ?,?)
	`,
		t.ID, t.Symbol, t.Tsym, t.Exchange, t.Day, t.Timeframe, t.Factor, t.InstrumentType,
		t.ClosePrice, t.Points, t.BU1, t.BU2, t.BU3, t.BU4, t.BU5, t.BE1, t.BE2, t.BE3, t.BE4, t.BE5,
		t.SLPrice, t.TPPrice, t.TSLTrigger, boolInt(t.TSLActive), t.TSLSLPrice,
		t.EntryLTP, t.EntryTS, t.ExitLTP, t.ExitTS, t.Quantity, t.Reason,
		t.LastLTP, t.MaxLTP, t.MinLTP, t.Runup, t.Drawdown, t.MaxProfitPoints,
		t.PnL, t.PnLPct, t.Brokerage, t.STT, t.ExchangeCharges, t.SEBICharges, t.StampDuty, t.GST, t.TotalCharges, t.NetPnL,
		t.Status, t.UpdatedAt,
	)
	return err
}

// UpdateTrade writes every mutable field of an existing trade back by id.
func (d *DB) UpdateTrade(t *PaperTrade) error {
	t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	_, err := d.sql.Exec(`
		UPDATE paper_trades SET
			tsl_active = ?, tsl_sl_price = ?,
			exit_ltp = ?, exit_ts = ?, reason = ?,
			last_ltp = ?, max_ltp = ?, min_ltp = ?, runup = ?, drawdown = ?, max_profit_points = ?,
			pnl = ?, pnl_pct = ?,
			brokerage = ?, stt = ?, exchange_charges = ?, sebi_charges = ?, stamp_duty = ?, gst = ?,
			total_charges = ?, net_pnl = ?,
			status = ?, updated_at = ?
		WHERE id = ?
	`,
		boolInt(t.TSLActive), t.TSLSLPrice,
		t.ExitLTP, t.ExitTS, t.Reason,
		t.LastLTP, t.MaxLTP, t.MinLTP, t.Runup, t.Drawdown, t.MaxProfitPoints,
		t.PnL, t.PnLPct,
		t.Brokerage, t.STT, t.ExchangeCharges, t.SEBICharges, t.StampDuty, t.GST,
		t.TotalCharges, t.NetPnL,
		t.Status, t.UpdatedAt,
		t.ID,
	)
	return err
}

// OpenTradeBySymbol returns the symbol's OPEN trade, or nil when it has none.
func (d *DB) OpenTradeBySymbol(symbol string) (*PaperTrade, error) {
	row := d.sql.QueryRow(`
		SELECT `+tradeColumns+` FROM paper_trades
		 WHERE symbol = ? AND status = ?
		 LIMIT 1
	`, symbol, StatusOpen)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListOpenTrades returns OPEN trades ordered by updated_at desc.
func (d *DB) ListOpenTrades(limit int) ([]PaperTrade, error) {
	return d.listTrades(StatusOpen, "updated_at DESC", limit)
}

// ListClosedTrades returns CLOSED trades ordered by exit_ts desc.
func (d *DB) ListClosedTrades(limit int) ([]PaperTrade, error) {
	return d.listTrades(StatusClosed, "exit_ts DESC", limit)
}

func (d *DB) listTrades(status, order string, limit int) ([]PaperTrade, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := d.sql.Query(`
		SELECT `+tradeColumns+` FROM paper_trades
		 WHERE status = ?
		 ORDER BY `+order+`
		 LIMIT ?
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaperTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// AllTrades returns every trade, open first then closed, newest first within
// each status. The export endpoint consumes this.
func (d *DB) AllTrades() ([]PaperTrade, error) {
	rows, err := d.sql.Query(`
		SELECT ` + tradeColumns + ` FROM paper_trades
		 ORDER BY status DESC, updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaperTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Summary aggregates win/loss and P/L across all trades. Wins count closed
// trades with net_pnl > 0.
func (d *DB) Summary() (*TradeSummary, error) {
	var s TradeSummary
	err := d.sql.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'CLOSED' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'CLOSED' AND net_pnl > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'CLOSED' AND net_pnl <= 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(pnl), 0),
		       COALESCE(SUM(net_pnl), 0),
		       COALESCE(SUM(total_charges), 0)
		  FROM paper_trades
	`).Scan(&s.Total, &s.Open, &s.Closed, &s.Wins, &s.Losses, &s.GrossPnL, &s.NetPnL, &s.TotalCharge)
	if err != nil {
		return nil, err
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
	}
	return &s, nil
}

// OpenPositionsForDay counts OPEN rows entered on the given day.
func (d *DB) OpenPositionsForDay(day string) (int, error) {
	var n int
	err := d.sql.QueryRow(`
		SELECT COUNT(*) FROM paper_trades WHERE day = ? AND status = ?
	`, day, StatusOpen).Scan(&n)
	return n, err
}

// MarginUsedForDay sums entry_ltp*quantity over the day's OPEN rows.
func (d *DB) MarginUsedForDay(day string) (float64, error) {
	var m float64
	err := d.sql.QueryRow(`
		SELECT COALESCE(SUM(entry_ltp * quantity), 0) FROM paper_trades WHERE day = ? AND status = ?
	`, day, StatusOpen).Scan(&m)
	return m, err
}

// RecentCloseTimes returns the latest exit timestamp per symbol among trades
// closed at or after the cutoff unix second.
func (d *DB) RecentCloseTimes(cutoff int64) (map[string]int64, error) {
	rows, err := d.sql.Query(`
		SELECT symbol, MAX(exit_ts) FROM paper_trades
		WHERE status = ? AND exit_ts >= ?
		GROUP BY symbol
	`, StatusClosed, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var ts int64
		if err := rows.Scan(&symbol, &ts); err != nil {
			return nil, err
		}
		out[symbol] = ts
	}
	return out, rows.Err()
}
