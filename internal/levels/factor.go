package levels

import (
	"strings"

	"b5factor/internal/market"
)

// The three B5 factor multipliers. points = close × factor spaces the ladder.
const (
	FactorMicro = 0.002611
	FactorMini  = 0.0261
	FactorMega  = 0.2611
)

// FactorValue maps a factor name to its multiplier. Unknown names resolve to micro.
func FactorValue(name string) float64 {
	switch name {
	case "mini":
		return FactorMini
	case "mega":
		return FactorMega
	default:
		return FactorMicro
	}
}

// SelectSmartFactor picks a factor per instrument from its volatility class.
// Rules are evaluated in order; the first match wins.
func SelectSmartFactor(ltp, close float64, exchange, tsym string) (value float64, name, reason string) {
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	tsym = strings.ToUpper(strings.TrimSpace(tsym))

	if exchange == "MCX" {
		return FactorMini, "mini", "mcx_commodity"
	}

	movePct := 0.0
	if close > 0 {
		movePct = abs(ltp-close) / close * 100
	}

	switch market.InstrumentType(exchange, tsym) {
	case market.TypeIndex:
		return FactorMicro, "micro", "index"
	case market.TypeOption:
		if movePct > 10 {
			return FactorMega, "mega", "extreme_volatility_option"
		}
		if movePct > 5 {
			return FactorMini, "mini", "volatile_option"
		}
		return FactorMicro, "micro", "option"
	case market.TypeFuture:
		if movePct > 3 {
			return FactorMini, "mini", "volatile_future"
		}
		return FactorMicro, "micro", "future"
	default:
		if movePct > 8 {
			return FactorMega, "mega", "extreme_volatility_equity"
		}
		if movePct > 5 {
			return FactorMini, "mini", "volatile_equity"
		}
		return FactorMicro, "micro", "equity"
	}
}

// ResolveFactor applies the configured factor to one row. "smart" delegates to
// the per-row rules; a fixed factor is used directly, except that MCX is always
// promoted to the configured MCX factor.
func ResolveFactor(requested, mcxFactor string, ltp, close float64, exchange, tsym string) (value float64, name, reason string) {
	if requested == "smart" {
		return SelectSmartFactor(ltp, close, exchange, tsym)
	}
	if strings.ToUpper(strings.TrimSpace(exchange)) == "MCX" {
		if mcxFactor == "" || mcxFactor == "smart" {
			mcxFactor = "mini"
		}
		return FactorValue(mcxFactor), mcxFactor, "mcx_commodity"
	}
	return FactorValue(requested), requested, "fixed"
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
