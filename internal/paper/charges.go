package paper

import "strings"

// Charges breaks a closed trade's transaction costs into the components the
// store persists. All rates are flat intraday-equity style approximations.
type Charges struct {
	Brokerage       float64
	STT             float64
	ExchangeCharges float64
	SEBI            float64
	StampDuty       float64
	GST             float64
	Total           float64
}

// ComputeCharges prices a round trip. Turnover T = (entry+exit)*quantity;
// stamp duty applies to the buy side only; GST covers brokerage plus
// exchange charges.
func ComputeCharges(entry, exit float64, quantity int, exchange string) Charges {
	q := float64(quantity)
	turnover := (entry + exit) * q

	var c Charges
	c.Brokerage = turnover * 0.0001
	if c.Brokerage > 20 {
		c.Brokerage = 20
	}

	ex := strings.ToUpper(strings.TrimSpace(exchange))
	if strings.HasPrefix(ex, "NSE") || strings.HasPrefix(ex, "BSE") {
		c.STT = turnover * 0.00025
	} else {
		c.STT = turnover * 0.0001
	}

	c.ExchangeCharges = turnover * 0.0000325
	c.SEBI = turnover * 0.000001
	c.StampDuty = entry * q * 0.00015
	c.GST = (c.Brokerage + c.ExchangeCharges) * 0.18
	c.Total = c.Brokerage + c.STT + c.ExchangeCharges + c.SEBI + c.StampDuty + c.GST
	return c
}
