package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"b5factor/internal/db"
	"b5factor/internal/market"
)

var exportHeader = []string{
	"id", "symbol", "tsym", "exchange", "day", "timeframe", "factor", "instrument_type",
	"entry_ltp", "entry_ts", "exit_ltp", "exit_ts", "quantity", "reason",
	"sl_price", "tp_price", "tsl_active", "tsl_sl_price",
	"pnl", "pnl_pct", "total_charges", "net_pnl", "status", "updated_at",
}

func exportRecord(t *db.PaperTrade) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		t.ID, t.Symbol, t.Tsym, t.Exchange, t.Day, t.Timeframe, t.Factor, t.InstrumentType,
		f(t.EntryLTP), strconv.FormatInt(t.EntryTS, 10), f(t.ExitLTP), strconv.FormatInt(t.ExitTS, 10),
		strconv.Itoa(t.Quantity), t.Reason,
		f(t.SLPrice), f(t.TPPrice), strconv.FormatBool(t.TSLActive), f(t.TSLSLPrice),
		f(t.PnL), f(t.PnLPct), f(t.TotalCharges), f(t.NetPnL), t.Status, t.UpdatedAt,
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "csv" && format != "json" {
		format = "csv"
	}

	trades, err := s.store.AllTrades()
	if err != nil {
		writeError(w, 500, "trade export query failed")
		return
	}
	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		writeError(w, 500, "export dir not writable")
		return
	}

	filename := fmt.Sprintf("trades_%s.%s", market.Now().Format("20060102_150405"), format)
	path := filepath.Join(s.cfg.ExportDir, filename)

	if format == "json" {
		err = writeJSONExport(path, trades)
	} else {
		err = writeCSVExport(path, trades)
	}
	if err != nil {
		writeError(w, 500, "export write failed")
		return
	}

	writeJSON(w, map[string]any{
		"filename":     filename,
		"count":        len(trades),
		"download_url": "/exports/" + filename,
	})
}

func writeCSVExport(path string, trades []db.PaperTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range trades {
		if err := cw.Write(exportRecord(&trades[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSONExport(path string, trades []db.PaperTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"count":       len(trades),
		"trades":      trades,
	})
}
