package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"b5factor/internal/config"
	"b5factor/internal/db"
	"b5factor/internal/levels"
	"b5factor/internal/snapshot"
)

func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.SnapshotFile = filepath.Join(dir, "snapshot.json")
	cfg.TicksFile = filepath.Join(dir, "ticks.csv")
	cfg.ExportDir = filepath.Join(dir, "exports")
	cfg.PaperDB = filepath.Join(dir, "paper.db")
	cfg.FirstCloseDB = filepath.Join(dir, "first_closes.db")
	cfg.PaperFactor = "micro"

	body := `{
		"day": "2026-08-25",
		"updated_at": "2026-08-25 11:00:00",
		"row_count": 3,
		"rows": [
			{"symbol":"NSE|1","tsym":"AAA","exchange":"NSE","ltp":100.9,"volume":5000,"first_5m_close":100,"fetch_done":true},
			{"symbol":"NSE|2","tsym":"BBB","exchange":"NSE","ltp":100.0,"volume":900,"first_5m_close":100,"fetch_done":true},
			{"symbol":"NSE|3","tsym":"CCC","exchange":"NSE","ltp":98.0,"volume":100,"first_5m_close":100,"fetch_done":false}
		],
		"status": {"login": true}
	}`
	if err := os.WriteFile(cfg.SnapshotFile, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)
	if err := os.Chtimes(cfg.SnapshotFile, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	store, err := db.Open(cfg.PaperDB)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	svc := levels.NewService(snapshot.NewLoader(cfg.SnapshotFile), levels.Options{
		TouchLookbackSec:       1800,
		JackpotMinConfirmation: 3,
		JackpotMinRR:           2.2,
		MinVolumeAccel:         1.15,
		MaxSpikePointsMult:     2.5,
		MCXFactor:              "mini",
	})
	return NewServer(cfg, store, nil, svc), store
}

func getJSON(t *testing.T, h http.Handler, url string) map[string]any {
	t.Helper()
	req := httptest.NewRequest("GET", url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("GET %s = %d: %s", url, rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("GET %s: bad json: %v", url, err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	out := getJSON(t, s.Handler(), "/api/health")
	if out["ok"] != true {
		t.Errorf("ok = %v", out["ok"])
	}
	if out["trade_mode"] != "paper" || out["live_enabled"] != false {
		t.Errorf("mode = %v/%v", out["trade_mode"], out["live_enabled"])
	}
	if out["ist_time"] == "" || out["ist_datetime"] == "" {
		t.Error("ist clock fields missing")
	}
}

func TestHandleDashboard_TriggerOnlyDefault(t *testing.T) {
	s, _ := newTestServer(t)
	out := getJSON(t, s.Handler(), "/api/dashboard?tf=5m&factor=micro")

	// Only NSE|1 is inside the BU range; NSE|2 is sideways, NSE|3 below BE5.
	rows := out["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("trigger rows = %d, want 1", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["symbol"] != "NSE|1" || row["trend"] != "UP" {
		t.Errorf("row = %v/%v", row["symbol"], row["trend"])
	}

	counts := out["counts"].(map[string]any)
	if counts["scanned"].(float64) != 3 || counts["trigger"].(float64) != 1 {
		t.Errorf("counts = %v", counts)
	}
	if out["day"] != "2026-08-25" {
		t.Errorf("day = %v", out["day"])
	}
}

func TestHandleDashboard_AllRowsAndFilters(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	out := getJSON(t, h, "/api/dashboard?trigger_only=0")
	if n := len(out["rows"].([]any)); n != 3 {
		t.Errorf("all rows = %d, want 3", n)
	}

	// complete=1 drops the fetch_done=false row.
	out = getJSON(t, h, "/api/dashboard?trigger_only=0&complete=1")
	if n := len(out["rows"].([]any)); n != 2 {
		t.Errorf("complete rows = %d, want 2", n)
	}

	// Prefix search over tsym.
	out = getJSON(t, h, "/api/dashboard?trigger_only=0&q=bb")
	rows := out["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["symbol"] != "NSE|2" {
		t.Errorf("q=bb rows = %v", rows)
	}

	// limit caps the result.
	out = getJSON(t, h, "/api/dashboard?trigger_only=0&limit=2")
	if n := len(out["rows"].([]any)); n != 2 {
		t.Errorf("limited rows = %d, want 2", n)
	}
}

func TestHandleDashboard_StatusBlock(t *testing.T) {
	s, _ := newTestServer(t)
	out := getJSON(t, s.Handler(), "/api/dashboard")

	status := out["status"].(map[string]any)
	if status["producer"].(map[string]any)["login"] != true {
		t.Errorf("producer status not passed through: %v", status["producer"])
	}
	if status["broker_limits"].(map[string]any)["status"] != "green" {
		t.Errorf("broker limits = %v", status["broker_limits"])
	}
	if _, ok := status["market"].(map[string]any)["ist_time"]; !ok {
		t.Error("market block missing")
	}
	storage := status["storage"].(map[string]any)
	if storage["snapshot_file_kb"].(float64) <= 0 {
		t.Errorf("snapshot_file_kb = %v", storage["snapshot_file_kb"])
	}
	if storage["paper_db_mb"].(float64) < 0 {
		t.Errorf("paper_db_mb = %v", storage["paper_db_mb"])
	}
}

func seedTrade(t *testing.T, store *db.DB, symbol string, status string, netPnL float64) {
	t.Helper()
	tr := &db.PaperTrade{
		ID: uuid.NewString(), Symbol: symbol, Tsym: "AAA", Exchange: "NSE",
		Day: "2026-08-25", Timeframe: "5m", Factor: "micro", InstrumentType: "EQUITY",
		EntryLTP: 100.9, EntryTS: 1756100000, Quantity: 1,
		LastLTP: 100.9, MaxLTP: 100.9, MinLTP: 100.9,
		Status: db.StatusOpen,
	}
	if err := store.InsertTrade(tr); err != nil {
		t.Fatal(err)
	}
	if status == db.StatusClosed {
		tr.Status = db.StatusClosed
		tr.ExitTS = 1756100300
		tr.ExitLTP = 100.9 + netPnL
		tr.PnL = netPnL
		tr.NetPnL = netPnL
		if err := store.UpdateTrade(tr); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHandleTrades(t *testing.T) {
	s, store := newTestServer(t)
	seedTrade(t, store, "NSE|1", db.StatusOpen, 0)
	seedTrade(t, store, "NSE|2", db.StatusClosed, 2.5)
	seedTrade(t, store, "NSE|3", db.StatusClosed, -1.0)

	out := getJSON(t, s.Handler(), "/api/trades")

	summary := out["summary"].(map[string]any)
	if summary["total"].(float64) != 3 || summary["open"].(float64) != 1 || summary["closed"].(float64) != 2 {
		t.Errorf("summary = %v", summary)
	}
	if summary["wins"].(float64) != 1 {
		t.Errorf("wins = %v", summary["wins"])
	}

	open := out["open"].([]any)
	if len(open) != 1 {
		t.Fatalf("open = %d", len(open))
	}
	// Open trade enriched from the live snapshot row.
	if open[0].(map[string]any)["current_ltp"].(float64) != 100.9 {
		t.Errorf("enrichment missing: %v", open[0])
	}

	analysis := out["analysis"].(map[string]any)
	winners := analysis["top_winners"].([]any)
	if len(winners) != 1 || winners[0].(map[string]any)["symbol"] != "NSE|2" {
		t.Errorf("winners = %v", winners)
	}
	losers := analysis["top_losers"].([]any)
	if len(losers) != 1 || losers[0].(map[string]any)["symbol"] != "NSE|3" {
		t.Errorf("losers = %v", losers)
	}
	if _, ok := analysis["volume_leaders"]; !ok {
		t.Error("volume_leaders missing")
	}
}

func TestHandleTrades_QueryFilter(t *testing.T) {
	s, store := newTestServer(t)
	seedTrade(t, store, "NSE|1", db.StatusOpen, 0)
	seedTrade(t, store, "BSE|9", db.StatusOpen, 0)

	out := getJSON(t, s.Handler(), "/api/trades?q=bse")
	open := out["open"].([]any)
	if len(open) != 1 || open[0].(map[string]any)["symbol"] != "BSE|9" {
		t.Errorf("filtered open = %v", open)
	}
}

func TestHandleBrokerLimits(t *testing.T) {
	s, store := newTestServer(t)
	out := getJSON(t, s.Handler(), "/api/broker-limits")
	if out["status"] != "green" || out["safe"] != true {
		t.Errorf("fresh limits = %v", out)
	}

	_ = store // counters start at zero without any entries
	if out["orders_limit"].(float64) != 2000 || out["positions_limit"].(float64) != 100 {
		t.Errorf("limits = %v/%v", out["orders_limit"], out["positions_limit"])
	}
}

func TestHandleExport_CSV(t *testing.T) {
	s, store := newTestServer(t)
	seedTrade(t, store, "NSE|1", db.StatusClosed, 1.5)

	h := s.Handler()
	out := getJSON(t, h, "/api/export?format=csv")
	if out["count"].(float64) != 1 {
		t.Errorf("count = %v", out["count"])
	}
	filename, _ := out["filename"].(string)
	if filename == "" {
		t.Fatal("filename missing")
	}
	if out["download_url"] != "/exports/"+filename {
		t.Errorf("download_url = %v", out["download_url"])
	}

	// The file exists and is served back over /exports/.
	if _, err := os.Stat(filepath.Join(s.cfg.ExportDir, filename)); err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	req := httptest.NewRequest("GET", out["download_url"].(string), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("download = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "id,") {
		t.Errorf("csv body starts %q", body[:min(len(body), 20)])
	}
}

func TestHandleExport_JSON(t *testing.T) {
	s, store := newTestServer(t)
	seedTrade(t, store, "NSE|1", db.StatusOpen, 0)

	out := getJSON(t, s.Handler(), "/api/export?format=json")
	filename := out["filename"].(string)
	data, err := os.ReadFile(filepath.Join(s.cfg.ExportDir, filename))
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("export not valid json: %v", err)
	}
	if parsed["count"].(float64) != 1 {
		t.Errorf("exported count = %v", parsed["count"])
	}
}

func TestCORSMiddleware(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest("OPTIONS", "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 204 {
		t.Errorf("preflight = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}
