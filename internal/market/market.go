// Package market holds the exchange-calendar policies: the IST clock,
// per-exchange auto-close thresholds, and instrument-type detection.
package market

import (
	"regexp"
	"strings"
	"time"
)

// IST is the Asia/Kolkata zone. All market time-of-day comparisons happen here;
// epoch math never mixes with local thresholds.
var IST = loadIST()

func loadIST() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	// Containers without tzdata still get the correct fixed offset (IST has no DST).
	return time.FixedZone("IST", 5*3600+30*60)
}

// Now returns the current time in IST.
func Now() time.Time {
	return time.Now().In(IST)
}

// Instrument types.
const (
	TypeIndex  = "INDEX"
	TypeOption = "OPTION"
	TypeFuture = "FUTURE"
	TypeEquity = "EQUITY"
)

var indexPattern = regexp.MustCompile(`^(NIFTY|BANKNIFTY|FINNIFTY|SENSEX)$`)

// InstrumentType classifies an instrument from its exchange and tradingsymbol.
// Order matters: index beats option beats future beats equity.
func InstrumentType(exchange, tsym string) string {
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	tsym = strings.ToUpper(strings.TrimSpace(tsym))

	if indexPattern.MatchString(tsym) {
		return TypeIndex
	}
	if exchange == "NFO" || exchange == "BFO" ||
		strings.HasSuffix(tsym, "CE") || strings.HasSuffix(tsym, "PE") {
		return TypeOption
	}
	if strings.Contains(tsym, "FUT") {
		return TypeFuture
	}
	return TypeEquity
}

// closeTOD is a time-of-day threshold in IST seconds since midnight.
type closeTOD int

const (
	equityClose closeTOD = 15*3600 + 28*60 + 30 // 15:28:30
	mcxClose    closeTOD = 23*3600 + 30*60      // 23:30:00
)

func closeThreshold(exchange string) closeTOD {
	if strings.ToUpper(strings.TrimSpace(exchange)) == "MCX" {
		return mcxClose
	}
	return equityClose
}

func secondsOfDay(t time.Time) closeTOD {
	t = t.In(IST)
	return closeTOD(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ShouldAutoClose reports whether the exchange's IST close threshold has passed
// at the given instant. Used both to block new entries and to force-close opens.
func ShouldAutoClose(exchange string, now time.Time) bool {
	return secondsOfDay(now) >= closeThreshold(exchange)
}

// IsOpen is the entry-side view of the close policy.
func IsOpen(exchange string, now time.Time) bool {
	return !ShouldAutoClose(exchange, now)
}

// IsEveningSession reports whether the IST hour is 17 or later. MCX commodities
// trade an evening session with thinner flow, so the probability threshold relaxes.
func IsEveningSession(now time.Time) bool {
	return now.In(IST).Hour() >= 17
}

// Day returns the ISO calendar day in IST for the given instant. Broker-limit
// counters and trade rows key on this.
func Day(now time.Time) string {
	return now.In(IST).Format("2006-01-02")
}
