package levels

import (
	"math"
	"sort"

	"b5factor/internal/snapshot"
)

// rrEpsilon floors the R:R denominator so a price sitting exactly on BU1
// doesn't divide by zero.
const rrEpsilon = 1e-4

// Options are the tunable thresholds the derived-row engine consumes.
type Options struct {
	TouchLookbackSec       int64   // BE5 touch stays "recent" for this long
	JackpotMinConfirmation int
	JackpotMinRR           float64
	MinVolumeAccel         float64
	MaxSpikePointsMult     float64
	MCXFactor              string // fixed-factor promotion for MCX rows
}

// Result is one engine run: every row that passed the numeric guard, and the
// trigger subset (in BU range, not sideways). Both sorted by (symbol, tsym).
type Result struct {
	All     []DerivedRow
	Trigger []DerivedRow
}

// Compute enriches the snapshot rows for (tf, factor), reading and then
// updating the signal state under key. nowUnix drives the BE5 retest window.
// O(N) in the number of rows.
func Compute(rows []snapshot.Row, tf, factor string, states *StateStore, opts Options, nowUnix int64) *Result {
	key := configKey{TF: tf, Factor: factor}

	states.mu.Lock()
	defer states.mu.Unlock()

	seen := make(map[string]bool, len(rows))
	all := make([]DerivedRow, 0, len(rows))

	for i := range rows {
		src := &rows[i]
		if src.Symbol == "" {
			continue
		}
		seen[src.Symbol] = true

		ltp, ltpOK := src.LTP.Float()
		close, closeOK := src.FirstClose(tf).Float()
		if !ltpOK || !closeOK || close == 0 {
			// Row is skipped but the symbol stays in the state store.
			continue
		}

		st := states.get(key, src.Symbol)
		row := deriveRow(src, tf, factor, ltp, close, st, opts, nowUnix)

		// Commit prev* only after the row's fields are fully derived.
		st.prevLtp, st.hasPrevLtp = ltp, true
		if vol, ok := src.Volume.Float(); ok {
			st.prevVolume, st.hasPrevVolume = vol, true
		}
		st.prevVolDelta = row.VolumeDelta

		all = append(all, row)
	}

	states.evictUnseen(key, seen)

	sort.Slice(all, func(i, j int) bool {
		if all[i].Symbol != all[j].Symbol {
			return all[i].Symbol < all[j].Symbol
		}
		return all[i].Tsym < all[j].Tsym
	})

	trigger := make([]DerivedRow, 0, len(all)/4)
	for _, r := range all {
		if r.InRangeUp && !r.Sideways {
			trigger = append(trigger, r)
		}
	}

	return &Result{All: all, Trigger: trigger}
}

func deriveRow(src *snapshot.Row, tf, factor string, ltp, close float64, st *symbolState, opts Options, nowUnix int64) DerivedRow {
	fval, fname, freason := ResolveFactor(factor, opts.MCXFactor, ltp, close, src.Exchange, src.Tsym)
	points := close * fval

	row := DerivedRow{
		Symbol:    src.Symbol,
		Tsym:      src.Tsym,
		Exchange:  src.Exchange,
		LTP:       ltp,
		Volume:    src.Volume.Or(0),
		FetchDone: src.FetchDone,
		UpdatedAt: src.UpdatedAt,

		Close:  close,
		Points: points,
		BU1:    close + 1*points,
		BU2:    close + 2*points,
		BU3:    close + 3*points,
		BU4:    close + 4*points,
		BU5:    close + 5*points,
		BE1:    close - 1*points,
		BE2:    close - 2*points,
		BE3:    close - 3*points,
		BE4:    close - 4*points,
		BE5:    close - 5*points,

		SelectedFactor: fname,
		Factor:         fval,
		FactorReason:   freason,

		DigitAnalyses:    src.DigitAnalyses,
		SelectedDigit:    src.SelectedDigit,
		SelectedAnalysis: src.SelectedAnalysis,
		GammaMove:        src.GammaMove,
		RangeShifts:      src.RangeShifts,
		TraderscopeReady: src.TraderscopeReady,
	}

	// Nearest of the ten ladder levels.
	names := [10]string{"BU1", "BU2", "BU3", "BU4", "BU5", "BE1", "BE2", "BE3", "BE4", "BE5"}
	values := [10]float64{row.BU1, row.BU2, row.BU3, row.BU4, row.BU5, row.BE1, row.BE2, row.BE3, row.BE4, row.BE5}
	best := 0
	for i := 1; i < len(values); i++ {
		if math.Abs(ltp-values[i]) < math.Abs(ltp-values[best]) {
			best = i
		}
	}
	row.NearName = names[best]
	row.NearValue = values[best]
	row.NearDiff = ltp - row.NearValue
	if row.NearValue != 0 {
		row.NearPct = row.NearDiff / row.NearValue * 100
	}

	row.InRangeUp = row.BU1 <= ltp && ltp <= row.BU5
	row.InRangeDown = row.BE5 <= ltp && ltp <= row.BE1
	row.Sideways = row.BE1 < ltp && ltp < row.BU1

	switch {
	case ltp >= row.BU1:
		row.Trend = TrendUp
	case ltp <= row.BE1:
		row.Trend = TrendDown
	default:
		row.Trend = TrendSideways
	}

	ups := [5]float64{row.BU1, row.BU2, row.BU3, row.BU4, row.BU5}
	downs := [5]float64{row.BE1, row.BE2, row.BE3, row.BE4, row.BE5}
	for k := 0; k < 5; k++ {
		if ltp >= ups[k] {
			row.UpBreakCount++
		}
		if ltp <= downs[k] {
			row.DownBreakCount++
		}
	}
	switch row.Trend {
	case TrendUp:
		row.Confirmation = row.UpBreakCount
	case TrendDown:
		row.Confirmation = row.DownBreakCount
	}

	row.RRToBU5 = math.Max(0, row.BU5-ltp) / math.Max(rrEpsilon, ltp-row.BU1)

	// Volume delta and acceleration against the previous recomputation.
	if vol, ok := src.Volume.Float(); ok && st.hasPrevVolume {
		row.VolumeDelta = math.Max(0, vol-st.prevVolume)
	}
	switch {
	case st.prevVolDelta > 0:
		row.VolumeAccel = row.VolumeDelta / st.prevVolDelta
	case row.VolumeDelta > 0:
		row.VolumeAccel = 1
	}

	// BE5 retest window.
	if ltp <= row.BE5 {
		if st.be5TouchTs == 0 || ltp < st.be5MinLtp {
			st.be5MinLtp = ltp
		}
		st.be5TouchTs = nowUnix
		st.be5TouchVolume = src.Volume.Or(0)
	}
	if st.be5TouchTs != 0 && nowUnix-st.be5TouchTs <= opts.TouchLookbackSec {
		row.BE5TouchedRecent = true
	} else if st.be5TouchTs != 0 {
		// Touch went stale: forget it.
		st.be5TouchTs = 0
		st.be5MinLtp = 0
		st.be5TouchVolume = 0
	}

	justCrossedBU1 := st.hasPrevLtp && st.prevLtp < row.BU1 && ltp >= row.BU1
	row.JackpotBE5Reversal = row.BE5TouchedRecent &&
		st.be5MinLtp <= row.BE5 &&
		ltp >= row.BU1 &&
		(justCrossedBU1 || row.NearName == "BU1") &&
		row.Confirmation >= opts.JackpotMinConfirmation &&
		row.RRToBU5 >= opts.JackpotMinRR &&
		row.VolumeAccel >= opts.MinVolumeAccel

	row.JackpotRetest = row.Trend == TrendUp && row.NearName == "BU1" && math.Abs(row.NearPct) <= 0.08
	row.JackpotShort = row.Trend == TrendDown && row.NearName == "BE1" && math.Abs(row.NearPct) <= 0.08

	if points > 0 && st.hasPrevLtp && math.Abs(ltp-st.prevLtp) > points*opts.MaxSpikePointsMult {
		row.SpikeFlag = true
	}

	score := 45*math.Min(5, float64(row.Confirmation))/5 +
		35*math.Min(5, row.RRToBU5)/5 +
		15*math.Min(3, row.VolumeAccel)/3
	if row.BE5TouchedRecent {
		score += 5
	}
	row.ProbabilityScore = int(math.Round(math.Max(0, math.Min(100, score))))

	return row
}
