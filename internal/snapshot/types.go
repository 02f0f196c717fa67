package snapshot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Num is a nullable float64 for snapshot numerics. The producer writes null for
// not-yet-seen values and occasionally quotes numbers; anything missing, empty,
// or non-finite decodes as null rather than failing the row.
type Num struct {
	Valid bool
	V     float64
}

// Float returns the value and whether it is present.
func (n Num) Float() (float64, bool) { return n.V, n.Valid }

// Or returns the value, or def when null.
func (n Num) Or(def float64) float64 {
	if n.Valid {
		return n.V
	}
	return def
}

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = Num{}
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err != nil {
			*n = Num{}
			return nil
		}
		s = unquoted
	}
	if s == "" {
		*n = Num{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = Num{}
		return nil
	}
	*n = Num{Valid: true, V: f}
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// Row is one instrument's entry in the producer's snapshot file.
// Traderscope fields are passed through untouched.
type Row struct {
	Symbol    string `json:"symbol"` // EXCHANGE|TOKEN, unique
	Tsym      string `json:"tsym,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	LTP       Num    `json:"ltp"`
	Volume    Num    `json:"volume"`
	First1m   Num    `json:"first_1m_close"`
	First5m   Num    `json:"first_5m_close"`
	First15m  Num    `json:"first_15m_close"`
	FetchDone bool   `json:"fetch_done"`
	UpdatedAt string `json:"updated_at,omitempty"`

	DigitAnalyses    json.RawMessage `json:"digit_analyses,omitempty"`
	SelectedDigit    json.RawMessage `json:"selected_digit,omitempty"`
	SelectedAnalysis json.RawMessage `json:"selected_analysis,omitempty"`
	GammaMove        json.RawMessage `json:"gamma_move,omitempty"`
	RangeShifts      json.RawMessage `json:"range_shifts,omitempty"`
	TraderscopeReady json.RawMessage `json:"traderscope_ready,omitempty"`
}

// FirstClose returns the first-candle close for a timeframe ("1m", "5m", "15m").
func (r *Row) FirstClose(tf string) Num {
	switch tf {
	case "1m":
		return r.First1m
	case "15m":
		return r.First15m
	default:
		return r.First5m
	}
}

// Snapshot is the parsed snapshot file plus its version (file mtime in ns).
type Snapshot struct {
	Day       string          `json:"day"`
	UpdatedAt string          `json:"updated_at"`
	RowCount  int             `json:"row_count"`
	Rows      []Row           `json:"rows"`
	Status    json.RawMessage `json:"status,omitempty"`

	Version int64 `json:"-"`
}

// Empty is the snapshot served when the file is absent or unreadable.
func Empty() *Snapshot {
	return &Snapshot{Day: "-", UpdatedAt: "-", RowCount: 0, Rows: []Row{}}
}
