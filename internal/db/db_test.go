package db

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func sampleTrade(symbol string) *PaperTrade {
	return &PaperTrade{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Tsym:           "AAA",
		Exchange:       "NSE",
		Day:            "2026-08-25",
		Timeframe:      "5m",
		Factor:         "micro",
		InstrumentType: "EQUITY",
		ClosePrice:     100,
		Points:         0.2611,
		BU1:            100.2611, BU2: 100.5222, BU3: 100.7833, BU4: 101.0444, BU5: 101.3055,
		BE1: 99.7389, BE2: 99.4778, BE3: 99.2167, BE4: 98.9556, BE5: 98.6945,
		SLPrice: 99.7389, TPPrice: 101.3055, TSLTrigger: 100.7833, TSLSLPrice: 99.7389,
		EntryLTP: 100.90, EntryTS: 1756100000, Quantity: 1,
		Reason:  "be5_reversal_guard_entry",
		LastLTP: 100.90, MaxLTP: 100.90, MinLTP: 100.90,
		Status: StatusOpen,
	}
}

func TestDB_MigrateIdempotent(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	// Running migrate again over an up-to-date schema is a no-op.
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestDB_TradeRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	in := sampleTrade("NSE|1")
	if err := d.InsertTrade(in); err != nil {
		t.Fatalf("InsertTrade: %v", err)
	}

	got, err := d.OpenTradeBySymbol("NSE|1")
	if err != nil {
		t.Fatalf("OpenTradeBySymbol: %v", err)
	}
	if got == nil {
		t.Fatal("open trade not found")
	}
	if got.ID != in.ID || got.Symbol != "NSE|1" || got.Status != StatusOpen {
		t.Errorf("round trip = %s/%s/%s", got.ID, got.Symbol, got.Status)
	}
	if got.BU5 != 101.3055 || got.BE1 != 99.7389 || got.TSLTrigger != 100.7833 {
		t.Errorf("levels = %v/%v/%v", got.BU5, got.BE1, got.TSLTrigger)
	}
	if got.EntryLTP != 100.90 || got.Quantity != 1 || got.TSLActive {
		t.Errorf("entry = %v/%d tsl_active=%v", got.EntryLTP, got.Quantity, got.TSLActive)
	}
	if got.Reason != "be5_reversal_guard_entry" {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestDB_OpenTradeBySymbol_None(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	got, err := d.OpenTradeBySymbol("NSE|999")
	if err != nil {
		t.Fatalf("err = %v (no rows must not be an error)", err)
	}
	if got != nil {
		t.Error("expected nil for a symbol with no open trade")
	}
}

func TestDB_UpdateAndClose(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	tr := sampleTrade("NSE|1")
	if err := d.InsertTrade(tr); err != nil {
		t.Fatal(err)
	}

	tr.TSLActive = true
	tr.TSLSLPrice = 100.2611
	tr.LastLTP = 101.10
	tr.MaxLTP = 101.10
	tr.Status = StatusClosed
	tr.ExitLTP = 100.20
	tr.ExitTS = 1756100300
	tr.Reason = "trailing_sl"
	tr.PnL = -0.70
	tr.NetPnL = -0.75
	tr.TotalCharges = 0.05
	if err := d.UpdateTrade(tr); err != nil {
		t.Fatalf("UpdateTrade: %v", err)
	}

	// Closed → no longer visible as the symbol's open trade.
	if got, _ := d.OpenTradeBySymbol("NSE|1"); got != nil {
		t.Error("closed trade still reported open")
	}

	closed, err := d.ListClosedTrades(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed len = %d", len(closed))
	}
	c := closed[0]
	if !c.TSLActive || c.TSLSLPrice != 100.2611 {
		t.Errorf("tsl = %v/%v", c.TSLActive, c.TSLSLPrice)
	}
	if c.Reason != "trailing_sl" || c.ExitLTP != 100.20 || c.ExitTS != 1756100300 {
		t.Errorf("exit = %q/%v/%d", c.Reason, c.ExitLTP, c.ExitTS)
	}
}

func TestDB_ListOrdering(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	a := sampleTrade("NSE|1")
	b := sampleTrade("NSE|2")
	c := sampleTrade("NSE|3")
	for _, tr := range []*PaperTrade{a, b, c} {
		if err := d.InsertTrade(tr); err != nil {
			t.Fatal(err)
		}
	}

	// Close a then c with increasing exit timestamps.
	a.Status, a.ExitTS, a.ExitLTP = StatusClosed, 100, 99
	c.Status, c.ExitTS, c.ExitLTP = StatusClosed, 200, 99
	if err := d.UpdateTrade(a); err != nil {
		t.Fatal(err)
	}
	if err := d.UpdateTrade(c); err != nil {
		t.Fatal(err)
	}

	closed, err := d.ListClosedTrades(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 2 || closed[0].Symbol != "NSE|3" || closed[1].Symbol != "NSE|1" {
		t.Errorf("closed order = %+v", symbols(closed))
	}

	open, err := d.ListOpenTrades(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Symbol != "NSE|2" {
		t.Errorf("open = %+v", symbols(open))
	}
}

func symbols(trades []PaperTrade) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.Symbol
	}
	return out
}

func TestDB_Summary(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	w := sampleTrade("NSE|1")
	l := sampleTrade("NSE|2")
	o := sampleTrade("NSE|3")
	for _, tr := range []*PaperTrade{w, l, o} {
		if err := d.InsertTrade(tr); err != nil {
			t.Fatal(err)
		}
	}
	w.Status, w.NetPnL, w.PnL, w.ExitTS = StatusClosed, 5, 5.2, 100
	l.Status, l.NetPnL, l.PnL, l.ExitTS = StatusClosed, -2, -1.8, 200
	d.UpdateTrade(w)
	d.UpdateTrade(l)

	s, err := d.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 3 || s.Open != 1 || s.Closed != 2 {
		t.Errorf("counts = %d/%d/%d", s.Total, s.Open, s.Closed)
	}
	if s.Wins != 1 || s.Losses != 1 || s.WinRate != 50 {
		t.Errorf("wins/losses/rate = %d/%d/%v", s.Wins, s.Losses, s.WinRate)
	}
	if s.NetPnL != 3 {
		t.Errorf("net pnl = %v", s.NetPnL)
	}
}

func TestDB_BrokerLimits(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	day := "2026-08-25"
	bl, err := d.GetBrokerLimits(day)
	if err != nil {
		t.Fatal(err)
	}
	if bl.OrdersPlaced != 0 || bl.OpenPositions != 0 || bl.MarginUsed != 0 {
		t.Errorf("fresh day = %+v", bl)
	}

	tr := sampleTrade("NSE|1")
	tr.Quantity = 50
	if err := d.InsertTrade(tr); err != nil {
		t.Fatal(err)
	}
	if err := d.IncrementOrders(day); err != nil {
		t.Fatal(err)
	}
	if err := d.IncrementOrders(day); err != nil {
		t.Fatal(err)
	}

	bl, err = d.GetBrokerLimits(day)
	if err != nil {
		t.Fatal(err)
	}
	if bl.OrdersPlaced != 2 {
		t.Errorf("orders_placed = %d", bl.OrdersPlaced)
	}
	if bl.OpenPositions != 1 {
		t.Errorf("open_positions = %d", bl.OpenPositions)
	}
	if want := 100.90 * 50; bl.MarginUsed != want {
		t.Errorf("margin_used = %v, want %v", bl.MarginUsed, want)
	}

	// Counters are per day.
	other, _ := d.GetBrokerLimits("2026-08-26")
	if other.OrdersPlaced != 0 || other.OpenPositions != 0 {
		t.Errorf("other day = %+v", other)
	}
}

func TestDB_MarginExcludesClosed(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	tr := sampleTrade("NSE|1")
	if err := d.InsertTrade(tr); err != nil {
		t.Fatal(err)
	}
	tr.Status, tr.ExitTS, tr.ExitLTP = StatusClosed, 100, 101
	d.UpdateTrade(tr)

	m, err := d.MarginUsedForDay("2026-08-25")
	if err != nil {
		t.Fatal(err)
	}
	if m != 0 {
		t.Errorf("margin after close = %v, want 0", m)
	}
}

func TestDB_RecentCloseTimes(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	old := sampleTrade("NSE|1")
	recent := sampleTrade("NSE|2")
	again := sampleTrade("NSE|2") // earlier close of the same symbol
	open := sampleTrade("NSE|3")
	for _, tr := range []*PaperTrade{old, recent, again, open} {
		if err := d.InsertTrade(tr); err != nil {
			t.Fatal(err)
		}
	}
	old.Status, old.ExitTS = StatusClosed, 500
	recent.Status, recent.ExitTS = StatusClosed, 2000
	again.Status, again.ExitTS = StatusClosed, 1500
	for _, tr := range []*PaperTrade{old, recent, again} {
		if err := d.UpdateTrade(tr); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.RecentCloseTimes(1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("symbols = %d, want 1 (%v)", len(got), got)
	}
	if got["NSE|2"] != 2000 {
		t.Errorf("NSE|2 exit = %d, want 2000", got["NSE|2"])
	}
}
