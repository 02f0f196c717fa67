package paper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"b5factor/internal/config"
	"b5factor/internal/db"
	"b5factor/internal/levels"
	"b5factor/internal/logger"
	"b5factor/internal/market"
	"b5factor/internal/metrics"
)

// Exit and rejection reasons.
const (
	ReasonEntry           = "be5_reversal_guard_entry"
	ReasonMarketCloseAuto = "market_close_auto"
	ReasonTargetBU5       = "target_bu5"
	ReasonTrailingSL      = "trailing_sl"
	ReasonSLBelowBU1      = "sl_below_bu1"
	ReasonSpikeProtection = "spike_protection"

	rejectOutsideRange  = "outside_bu1_bu5"
	rejectMissingLevels = "missing_levels"
)

// mcxEveningProbability replaces the probability threshold for MCX rows once
// the IST evening session starts.
const mcxEveningProbability = 25

// Engine runs the paper-trade lifecycle: one pass per snapshot version, open
// trades managed before new entries are considered. It is the exclusive
// writer of the paper-trade DB.
type Engine struct {
	cfg   *config.Config
	store *db.DB
	svc   *levels.Service

	cooldowns   map[string]int64 // symbol → unix second of last close
	lastVersion int64

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates the paper engine.
func NewEngine(cfg *config.Config, store *db.DB, svc *levels.Service) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		svc:       svc,
		cooldowns: make(map[string]int64),
		now:       market.Now,
	}
}

// Run drives Cycle on the configured interval until the context ends.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.PaperCycleMS) * time.Millisecond
	logger.Info("Paper", fmt.Sprintf("Engine started: tf=%s factor=%s cycle=%s cooldown=%ds",
		e.cfg.PaperTF, e.cfg.PaperFactor, interval, e.cfg.PaperCooldown))
	if e.cfg.LiveArmed() {
		logger.Warn("Paper", "TRADE_MODE=live is armed but order routing is not wired; running paper fills only")
	}

	e.seedCooldowns()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Paper", "Engine stopped")
			return
		case <-ticker.C:
			if err := e.Cycle(); err != nil {
				logger.Error("Paper", fmt.Sprintf("cycle failed: %v", err))
				metrics.IncCycle("error")
			}
		}
	}
}

// seedCooldowns rebuilds the re-entry cooldown window from trades closed
// before this process started, so a restart cannot bypass it.
func (e *Engine) seedCooldowns() {
	cutoff := e.now().Unix() - int64(e.cfg.PaperCooldown)
	recent, err := e.store.RecentCloseTimes(cutoff)
	if err != nil {
		logger.Warn("Paper", fmt.Sprintf("cooldown seed: %v", err))
		return
	}
	for symbol, ts := range recent {
		if ts > e.cooldowns[symbol] {
			e.cooldowns[symbol] = ts
		}
	}
	if len(recent) > 0 {
		logger.Info("Paper", fmt.Sprintf("Seeded %d re-entry cooldown(s) from closed trades", len(recent)))
	}
}

// Cycle runs one engine pass. It no-ops unless the snapshot version advanced
// since the previous pass; open trades are always updated before any entry is
// considered, so a close and a re-entry can never share a version.
func (e *Engine) Cycle() error {
	res, snap := e.svc.Rows(e.cfg.PaperTF, e.cfg.PaperFactor)
	if snap.Version == 0 || snap.Version == e.lastVersion {
		metrics.IncCycle("skipped")
		return nil
	}
	e.lastVersion = snap.Version
	metrics.IncSnapshotReload()

	now := e.now()
	day := market.Day(now)

	rowBySymbol := make(map[string]*levels.DerivedRow, len(res.All))
	for i := range res.All {
		rowBySymbol[res.All[i].Symbol] = &res.All[i]
	}

	open, err := e.store.ListOpenTrades(e.cfg.MaxOpenPositions * 2)
	if err != nil {
		return fmt.Errorf("list open trades: %w", err)
	}
	for i := range open {
		if err := e.manageOpen(&open[i], rowBySymbol[open[i].Symbol], now); err != nil {
			logger.Error("Paper", fmt.Sprintf("manage %s: %v", open[i].Symbol, err))
		}
	}

	for i := range res.Trigger {
		if err := e.considerEntry(&res.Trigger[i], now, day); err != nil {
			logger.Error("Paper", fmt.Sprintf("entry %s: %v", res.Trigger[i].Symbol, err))
		}
	}

	e.publishGauges(day)
	metrics.IncCycle("ran")
	return nil
}

func (e *Engine) publishGauges(day string) {
	if n, err := e.store.OpenPositionsForDay(day); err == nil {
		metrics.SetOpenPositions(n)
	}
	if m, err := e.store.MarginUsedForDay(day); err == nil {
		metrics.SetMarginUsed(m)
	}
}

// manageOpen updates one OPEN trade's running metrics, advances the trailing
// stop, and evaluates the exit chain in precedence order. row may be nil when
// the symbol dropped out of the snapshot; only the market-close check applies
// then, at the last known price.
func (e *Engine) manageOpen(t *db.PaperTrade, row *levels.DerivedRow, now time.Time) error {
	if market.ShouldAutoClose(t.Exchange, now) {
		ltp := t.LastLTP
		if row != nil {
			ltp = row.LTP
		}
		return e.closeTrade(t, ltp, ReasonMarketCloseAuto, now)
	}
	if row == nil {
		return nil
	}
	ltp := row.LTP

	t.LastLTP = ltp
	t.MaxLTP = max(t.MaxLTP, ltp)
	t.MinLTP = min(t.MinLTP, ltp)
	t.Runup = max(t.Runup, ltp-t.EntryLTP)
	t.Drawdown = max(t.Drawdown, t.EntryLTP-ltp)
	t.MaxProfitPoints = max(t.MaxProfitPoints, t.MaxLTP-t.EntryLTP)
	t.PnL = (ltp - t.EntryLTP) * float64(t.Quantity)
	t.PnLPct = (ltp - t.EntryLTP) / t.EntryLTP * 100

	// Trailing ladder. Activation is one-way and the stop only ratchets up.
	if !t.TSLActive && ltp >= t.TSLTrigger {
		t.TSLActive = true
		t.TSLSLPrice = t.BE1
		log.Printf("[DEBUG] tsl activated %s at %.4f, stop %.4f", t.Symbol, ltp, t.TSLSLPrice)
	}
	if t.TSLActive && ltp >= t.BU4 && t.TSLSLPrice < t.BU1 {
		t.TSLSLPrice = t.BU1
	}
	if t.TSLActive && ltp >= t.BU5 && t.TSLSLPrice < t.BU2 {
		t.TSLSLPrice = t.BU2
	}

	switch {
	case ltp >= t.BU5:
		return e.closeTrade(t, ltp, ReasonTargetBU5, now)
	case t.TSLActive && ltp < t.TSLSLPrice:
		return e.closeTrade(t, ltp, ReasonTrailingSL, now)
	case !t.TSLActive && ltp < t.BU1:
		return e.closeTrade(t, ltp, ReasonSLBelowBU1, now)
	case row.SpikeFlag && ltp < t.EntryLTP:
		return e.closeTrade(t, ltp, ReasonSpikeProtection, now)
	}

	return e.store.UpdateTrade(t)
}

func (e *Engine) closeTrade(t *db.PaperTrade, exitLtp float64, reason string, now time.Time) error {
	c := ComputeCharges(t.EntryLTP, exitLtp, t.Quantity, t.Exchange)

	t.Status = db.StatusClosed
	t.ExitLTP = exitLtp
	t.ExitTS = now.Unix()
	t.Reason = reason
	t.LastLTP = exitLtp
	t.MaxLTP = max(t.MaxLTP, exitLtp)
	t.MinLTP = min(t.MinLTP, exitLtp)
	t.PnL = (exitLtp - t.EntryLTP) * float64(t.Quantity)
	t.PnLPct = (exitLtp - t.EntryLTP) / t.EntryLTP * 100
	t.Brokerage = c.Brokerage
	t.STT = c.STT
	t.ExchangeCharges = c.ExchangeCharges
	t.SEBICharges = c.SEBI
	t.StampDuty = c.StampDuty
	t.GST = c.GST
	t.TotalCharges = c.Total
	t.NetPnL = t.PnL - c.Total

	if err := e.store.UpdateTrade(t); err != nil {
		return err
	}
	e.cooldowns[t.Symbol] = now.Unix()
	metrics.IncExit(reason)
	logger.Info("Paper", fmt.Sprintf("Closed %s %s @ %.4f (%s) net %.2f", t.Symbol, t.Tsym, exitLtp, reason, t.NetPnL))
	return nil
}

// considerEntry applies the entry filter to one trigger row and opens a trade
// when every gate passes. Rejections are silent except in the debug log.
func (e *Engine) considerEntry(row *levels.DerivedRow, now time.Time, day string) error {
	if open, err := e.store.OpenTradeBySymbol(row.Symbol); err != nil {
		return err
	} else if open != nil {
		return nil
	}
	if closedAt, ok := e.cooldowns[row.Symbol]; ok && now.Unix() < closedAt+int64(e.cfg.PaperCooldown) {
		return nil
	}

	if !row.FetchDone {
		return nil
	}
	if e.cfg.TrendOnly && row.Trend != levels.TrendUp {
		return nil
	}
	if row.Confirmation < e.cfg.MinConfirmation {
		return nil
	}
	if row.RRToBU5 < e.cfg.MinRR {
		return nil
	}
	probMin := e.cfg.MinProbabilityScore
	if row.Exchange == "MCX" && market.IsEveningSession(now) {
		probMin = mcxEveningProbability
	}
	if float64(row.ProbabilityScore) < probMin {
		return nil
	}
	if row.SpikeFlag {
		return nil
	}
	if e.cfg.JackpotOnly && !row.JackpotBE5Reversal {
		return nil
	}
	if !market.IsOpen(row.Exchange, now) {
		return nil
	}

	bl, err := e.store.GetBrokerLimits(day)
	if err != nil {
		return err
	}
	if !EvaluateLimits(bl, e.cfg).Safe {
		log.Printf("[DEBUG] entry blocked by broker limits for %s", row.Symbol)
		return nil
	}

	// Entry guard, re-checked after selection.
	if row.BU1 == 0 || row.BU5 == 0 {
		log.Printf("[DEBUG] entry rejected %s: %s", row.Symbol, rejectMissingLevels)
		return nil
	}
	if row.LTP < row.BU1 || row.LTP > row.BU5 {
		log.Printf("[DEBUG] entry rejected %s: %s", row.Symbol, rejectOutsideRange)
		return nil
	}

	instrument := market.InstrumentType(row.Exchange, row.Tsym)
	quantity := 1
	if instrument == market.TypeOption {
		quantity = 50
	}

	t := &db.PaperTrade{
		ID:             uuid.NewString(),
		Symbol:         row.Symbol,
		Tsym:           row.Tsym,
		Exchange:       row.Exchange,
		Day:            day,
		Timeframe:      e.cfg.PaperTF,
		Factor:         row.SelectedFactor,
		InstrumentType: instrument,

		ClosePrice: row.Close,
		Points:     row.Points,
		BU1:        row.BU1, BU2: row.BU2, BU3: row.BU3, BU4: row.BU4, BU5: row.BU5,
		BE1: row.BE1, BE2: row.BE2, BE3: row.BE3, BE4: row.BE4, BE5: row.BE5,

		SLPrice:    row.BE1,
		TPPrice:    row.BU5,
		TSLTrigger: row.BU3,
		TSLSLPrice: row.BE1,

		EntryLTP: row.LTP,
		EntryTS:  now.Unix(),
		Quantity: quantity,
		Reason:   ReasonEntry,

		LastLTP: row.LTP,
		MaxLTP:  row.LTP,
		MinLTP:  row.LTP,

		Status: db.StatusOpen,
	}
	if err := e.store.InsertTrade(t); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	if err := e.store.IncrementOrders(day); err != nil {
		logger.Warn("Paper", fmt.Sprintf("order counter: %v", err))
	}
	metrics.IncEntry()
	logger.Success("Paper", fmt.Sprintf("Opened %s %s @ %.4f qty=%d sl=%.4f tp=%.4f", t.Symbol, t.Tsym, t.EntryLTP, t.Quantity, t.SLPrice, t.TPPrice))
	return nil
}
