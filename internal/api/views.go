package api

import (
	"math"
	"net/http"
	"os"
	"sort"
	"strings"

	"b5factor/internal/db"
	"b5factor/internal/levels"
	"b5factor/internal/market"
	"b5factor/internal/paper"
)

func normalizeTF(tf string) string {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m":
		return "1m"
	case "15m":
		return "15m"
	default:
		return "5m"
	}
}

func normalizeFactor(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "micro", "mini", "mega":
		return strings.ToLower(strings.TrimSpace(f))
	default:
		return "smart"
	}
}

func matchesQuery(q, symbol, tsym string) bool {
	if q == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(symbol), q) || strings.HasPrefix(strings.ToLower(tsym), q)
}

type fileInfo struct {
	SizeBytes int64  `json:"size_bytes"`
	Modified  string `json:"modified,omitempty"`
}

func statFile(path string) fileInfo {
	st, err := os.Stat(path)
	if err != nil {
		return fileInfo{}
	}
	return fileInfo{SizeBytes: st.Size(), Modified: st.ModTime().UTC().Format("2006-01-02T15:04:05Z")}
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// storageView mirrors the producer's status.storage block with the sizes this
// process can see.
func (s *Server) storageView() map[string]any {
	return map[string]any{
		"snapshot_file_kb": round2(float64(fileSize(s.cfg.SnapshotFile)) / 1024),
		"db_file_mb":       round2(float64(fileSize(s.cfg.FirstCloseDB)) / (1024 * 1024)),
		"paper_db_mb":      round2(float64(fileSize(s.cfg.PaperDB)) / (1024 * 1024)),
		"ticks_file_mb":    round2(float64(fileSize(s.cfg.TicksFile)) / (1024 * 1024)),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	tf := normalizeTF(qp.Get("tf"))
	factor := normalizeFactor(qp.Get("factor"))
	q := strings.ToLower(strings.TrimSpace(qp.Get("q")))
	completeOnly := qp.Get("complete") == "1"
	triggerOnly := qp.Get("trigger_only") != "0"
	limit := clampLimit(qp.Get("limit"), 5000, 50000)

	res, snap := s.svc.Rows(tf, factor)

	source := res.All
	if triggerOnly {
		source = res.Trigger
	}
	rows := make([]levels.DerivedRow, 0, min(len(source), limit))
	for i := range source {
		row := &source[i]
		if completeOnly && !row.FetchDone {
			continue
		}
		if !matchesQuery(q, row.Symbol, row.Tsym) {
			continue
		}
		rows = append(rows, *row)
		if len(rows) >= limit {
			break
		}
	}

	now := market.Now()
	day := market.Day(now)

	firstCloseRows, pending := 0, 0
	if s.firstClose != nil {
		firstCloseRows = s.firstClose.RowCountForDay(snap.Day)
		pending = s.firstClose.PendingCount()
	}

	var limitsStatus *paper.LimitsStatus
	if bl, err := s.store.GetBrokerLimits(day); err == nil {
		limitsStatus = paper.EvaluateLimits(bl, s.cfg)
	}

	writeJSON(w, map[string]any{
		"day":        snap.Day,
		"updated_at": snap.UpdatedAt,
		"row_count":  snap.RowCount,
		"version":    snap.Version,
		"tf":         tf,
		"factor":     factor,
		"rows":       rows,
		"counts": map[string]int{
			"scanned":  len(res.All),
			"trigger":  len(res.Trigger),
			"returned": len(rows),
		},
		"stats": map[string]any{
			"first_close_rows":  firstCloseRows,
			"pending_symbols":   pending,
			"symbol_state_size": s.svc.States().Size(),
			"snapshot_file":     statFile(s.cfg.SnapshotFile),
			"ticks_file":        statFile(s.cfg.TicksFile),
		},
		"status": map[string]any{
			"producer":      snap.Status,
			"broker_limits": limitsStatus,
			"storage":       s.storageView(),
			"trade_mode":    s.cfg.TradeMode,
			"live_enabled":  s.cfg.LiveArmed(),
			"market": map[string]any{
				"ist_time":        now.Format("15:04:05"),
				"nse_open":        market.IsOpen("NSE", now),
				"mcx_open":        market.IsOpen("MCX", now),
				"evening_session": market.IsEveningSession(now),
			},
		},
	})
}

// tradeView is a stored trade plus the symbol's current snapshot fields.
type tradeView struct {
	db.PaperTrade
	CurrentLTP       float64 `json:"current_ltp,omitempty"`
	CurrentTrend     string  `json:"current_trend,omitempty"`
	ProbabilityScore int     `json:"current_probability_score,omitempty"`
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()
	openLimit := clampLimit(qp.Get("open_limit"), 500, 5000)
	closedLimit := clampLimit(qp.Get("closed_limit"), 1000, 10000)
	q := strings.ToLower(strings.TrimSpace(qp.Get("q")))

	summary, err := s.store.Summary()
	if err != nil {
		writeError(w, 500, "summary query failed")
		return
	}
	open, err := s.store.ListOpenTrades(openLimit)
	if err != nil {
		writeError(w, 500, "open trades query failed")
		return
	}
	closed, err := s.store.ListClosedTrades(closedLimit)
	if err != nil {
		writeError(w, 500, "closed trades query failed")
		return
	}

	res, _ := s.svc.Rows(s.cfg.PaperTF, s.cfg.PaperFactor)
	rowBySymbol := make(map[string]*levels.DerivedRow, len(res.All))
	for i := range res.All {
		rowBySymbol[res.All[i].Symbol] = &res.All[i]
	}

	enrich := func(trades []db.PaperTrade) []tradeView {
		out := make([]tradeView, 0, len(trades))
		for _, t := range trades {
			if !matchesQuery(q, t.Symbol, t.Tsym) {
				continue
			}
			v := tradeView{PaperTrade: t}
			if row, ok := rowBySymbol[t.Symbol]; ok {
				v.CurrentLTP = row.LTP
				v.CurrentTrend = row.Trend
				v.ProbabilityScore = row.ProbabilityScore
			}
			out = append(out, v)
		}
		return out
	}

	writeJSON(w, map[string]any{
		"summary":  summary,
		"open":     enrich(open),
		"closed":   enrich(closed),
		"analysis": s.buildAnalysis(open, closed, res),
	})
}

type symbolPerf struct {
	Symbol string  `json:"symbol"`
	Tsym   string  `json:"tsym,omitempty"`
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	NetPnL float64 `json:"net_pnl"`
}

type mover struct {
	Symbol  string  `json:"symbol"`
	Tsym    string  `json:"tsym,omitempty"`
	LTP     float64 `json:"ltp"`
	Volume  float64 `json:"volume,omitempty"`
	MovePct float64 `json:"move_pct"`
}

const analysisTopN = 5

// buildAnalysis aggregates the open+closed population and the current derived
// rows into the dashboard's analysis block.
func (s *Server) buildAnalysis(open, closed []db.PaperTrade, res *levels.Result) map[string]any {
	// Winners/losers over both populations; open trades rank on running pnl.
	all := make([]db.PaperTrade, 0, len(open)+len(closed))
	all = append(all, open...)
	all = append(all, closed...)

	ranked := make([]db.PaperTrade, len(all))
	copy(ranked, all)
	sort.Slice(ranked, func(i, j int) bool { return rankPnL(&ranked[i]) > rankPnL(&ranked[j]) })

	winners := make([]db.PaperTrade, 0, analysisTopN)
	losers := make([]db.PaperTrade, 0, analysisTopN)
	for i := 0; i < len(ranked) && i < analysisTopN; i++ {
		if rankPnL(&ranked[i]) > 0 {
			winners = append(winners, ranked[i])
		}
	}
	for i := len(ranked) - 1; i >= 0 && len(losers) < analysisTopN; i-- {
		if rankPnL(&ranked[i]) < 0 {
			losers = append(losers, ranked[i])
		}
	}

	// Per-symbol performance.
	perfBySymbol := make(map[string]*symbolPerf)
	for i := range all {
		t := &all[i]
		p, ok := perfBySymbol[t.Symbol]
		if !ok {
			p = &symbolPerf{Symbol: t.Symbol, Tsym: t.Tsym}
			perfBySymbol[t.Symbol] = p
		}
		p.Trades++
		p.NetPnL += rankPnL(t)
		if t.Status == db.StatusClosed && t.NetPnL > 0 {
			p.Wins++
		}
	}
	perf := make([]symbolPerf, 0, len(perfBySymbol))
	for _, p := range perfBySymbol {
		perf = append(perf, *p)
	}
	sort.Slice(perf, func(i, j int) bool { return perf[i].NetPnL > perf[j].NetPnL })

	// Volume leaders and movers from the live rows.
	volumeLeaders := make([]mover, 0, analysisTopN)
	movers := make([]mover, 0, len(res.All))
	for i := range res.All {
		row := &res.All[i]
		m := mover{Symbol: row.Symbol, Tsym: row.Tsym, LTP: row.LTP, Volume: row.Volume}
		if row.Close != 0 {
			m.MovePct = (row.LTP - row.Close) / row.Close * 100
		}
		movers = append(movers, m)
	}

	byVolume := make([]mover, len(movers))
	copy(byVolume, movers)
	sort.Slice(byVolume, func(i, j int) bool { return byVolume[i].Volume > byVolume[j].Volume })
	for i := 0; i < len(byVolume) && i < analysisTopN; i++ {
		volumeLeaders = append(volumeLeaders, byVolume[i])
	}

	sort.Slice(movers, func(i, j int) bool { return movers[i].MovePct > movers[j].MovePct })
	gainers := headMovers(movers, analysisTopN)
	reversed := make([]mover, len(movers))
	for i := range movers {
		reversed[i] = movers[len(movers)-1-i]
	}
	decliners := headMovers(reversed, analysisTopN)

	return map[string]any{
		"top_winners":    winners,
		"top_losers":     losers,
		"symbol_perf":    perf,
		"volume_leaders": volumeLeaders,
		"top_gainers":    gainers,
		"top_losers_pct": decliners,
	}
}

// rankPnL is the figure a trade ranks on: realized net for closed rows,
// running gross for open ones.
func rankPnL(t *db.PaperTrade) float64 {
	if t.Status == db.StatusClosed {
		return t.NetPnL
	}
	return t.PnL
}

func headMovers(ms []mover, n int) []mover {
	if len(ms) < n {
		n = len(ms)
	}
	out := make([]mover, n)
	copy(out, ms[:n])
	return out
}

func (s *Server) handleBrokerLimits(w http.ResponseWriter, r *http.Request) {
	day := market.Day(market.Now())
	bl, err := s.store.GetBrokerLimits(day)
	if err != nil {
		writeError(w, 500, "broker limits query failed")
		return
	}
	writeJSON(w, paper.EvaluateLimits(bl, s.cfg))
}
