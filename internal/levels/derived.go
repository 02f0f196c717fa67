package levels

import "encoding/json"

// Trend values.
const (
	TrendUp       = "UP"
	TrendDown     = "DOWN"
	TrendSideways = "SIDEWAYS"
)

// DerivedRow is one instrument's enriched view for a (timeframe, factor)
// configuration: the B5 ladder, trend classification, confirmation strength,
// jackpot flags and the composite probability score.
type DerivedRow struct {
	Symbol    string  `json:"symbol"`
	Tsym      string  `json:"tsym,omitempty"`
	Exchange  string  `json:"exchange,omitempty"`
	LTP       float64 `json:"ltp"`
	Volume    float64 `json:"volume"`
	FetchDone bool    `json:"fetch_done"`
	UpdatedAt string  `json:"updated_at,omitempty"`

	Close  float64 `json:"close"`
	Points float64 `json:"points"`
	BU1    float64 `json:"bu1"`
	BU2    float64 `json:"bu2"`
	BU3    float64 `json:"bu3"`
	BU4    float64 `json:"bu4"`
	BU5    float64 `json:"bu5"`
	BE1    float64 `json:"be1"`
	BE2    float64 `json:"be2"`
	BE3    float64 `json:"be3"`
	BE4    float64 `json:"be4"`
	BE5    float64 `json:"be5"`

	NearName  string  `json:"near_name"`
	NearValue float64 `json:"near_value"`
	NearDiff  float64 `json:"near_diff"`
	NearPct   float64 `json:"near_pct"`

	InRangeUp   bool   `json:"in_range_up"`
	InRangeDown bool   `json:"in_range_down"`
	Sideways    bool   `json:"sideways"`
	Trend       string `json:"trend"`

	UpBreakCount   int     `json:"up_break_count"`
	DownBreakCount int     `json:"down_break_count"`
	Confirmation   int     `json:"confirmation"`
	RRToBU5        float64 `json:"rr_to_bu5"`

	VolumeDelta float64 `json:"volume_delta"`
	VolumeAccel float64 `json:"volume_accel"`

	BE5TouchedRecent   bool `json:"be5_touched_recent"`
	JackpotBE5Reversal bool `json:"jackpot_be5_reversal"`
	JackpotRetest      bool `json:"jackpot_retest"`
	JackpotShort       bool `json:"jackpot_short"`
	SpikeFlag          bool `json:"spike_flag"`

	ProbabilityScore int `json:"probability_score"`

	SelectedFactor string  `json:"selected_factor"`
	Factor         float64 `json:"factor"`
	FactorReason   string  `json:"factor_reason"`

	// Traderscope passthrough, untouched from the snapshot row.
	DigitAnalyses    json.RawMessage `json:"digit_analyses,omitempty"`
	SelectedDigit    json.RawMessage `json:"selected_digit,omitempty"`
	SelectedAnalysis json.RawMessage `json:"selected_analysis,omitempty"`
	GammaMove        json.RawMessage `json:"gamma_move,omitempty"`
	RangeShifts      json.RawMessage `json:"range_shifts,omitempty"`
	TraderscopeReady json.RawMessage `json:"traderscope_ready,omitempty"`
}
