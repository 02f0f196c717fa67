package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the analytics and paper-trading engine.
// Values come from the environment (optionally a .env file); Default() documents
// every knob's fallback.
type Config struct {
	Port int

	// Data locations.
	SnapshotFile string // JSON snapshot written atomically by the upstream producer
	FirstCloseDB string // read-only first-close SQLite DB
	PaperDB      string // paper-trade SQLite DB (exclusive writer)
	TicksFile    string // tick CSV written by the producer; only stat'ed for the dashboard
	ExportDir    string // trade-history exports land here

	// Live config the paper engine trades on.
	PaperTF        string // 1m | 5m | 15m
	PaperFactor    string // micro | mini | mega | smart
	PaperFactorMCX string // factor override for MCX instruments
	PaperCooldown  int    // seconds between a close and the next entry for a symbol
	PaperCycleMS   int    // engine poll interval, min 500

	TradeMode         string // paper | live
	EnableLiveTrading bool   // live mode stays inert unless set

	// Entry filter thresholds.
	TrendOnly              bool
	MinConfirmation        int
	MinRR                  float64
	JackpotOnly            bool
	JackpotTouchLookback   int // seconds a BE5 touch stays "recent"
	JackpotMinConfirmation int
	JackpotMinRR           float64
	MinVolumeAccel         float64
	MinProbabilityScore    float64
	MaxSpikePointsMult     float64

	// Broker limits.
	MaxOrdersPerDay  int
	MaxOpenPositions int
	MaxMarginUsedPct float64
}

// Default returns a Config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Port:                   8787,
		SnapshotFile:           "history_out/ui_current_day.json",
		FirstCloseDB:           "history_out/first_closes.db",
		PaperDB:                "history_out/paper_trades.db",
		TicksFile:              "history_out/ticks.csv",
		ExportDir:              "exports",
		PaperTF:                "5m",
		PaperFactor:            "smart",
		PaperFactorMCX:         "mini",
		PaperCooldown:          30,
		PaperCycleMS:           1500,
		TradeMode:              "paper",
		TrendOnly:              true,
		MinConfirmation:        2,
		MinRR:                  0.5,
		JackpotTouchLookback:   1800,
		JackpotMinConfirmation: 3,
		JackpotMinRR:           2.2,
		MinVolumeAccel:         1.15,
		MinProbabilityScore:    35,
		MaxSpikePointsMult:     2.5,
		MaxOrdersPerDay:        2000,
		MaxOpenPositions:       100,
		MaxMarginUsedPct:       80,
	}
}

// Load reads .env (if present) and the process environment into a Config.
func Load() *Config {
	godotenv.Load() // missing file is fine; process env wins either way

	cfg := Default()
	cfg.Port = envInt("PORT", cfg.Port)
	cfg.SnapshotFile = envStr("SNAPSHOT_FILE", cfg.SnapshotFile)
	cfg.FirstCloseDB = envStr("FIRST_CLOSE_DB", cfg.FirstCloseDB)
	cfg.PaperDB = envStr("PAPER_DB", cfg.PaperDB)
	cfg.TicksFile = envStr("TICKS_FILE", cfg.TicksFile)
	cfg.ExportDir = envStr("EXPORT_DIR", cfg.ExportDir)

	cfg.PaperTF = normalizeTF(envStr("PAPER_TF", cfg.PaperTF))
	cfg.PaperFactor = normalizeFactor(envStr("PAPER_FACTOR", cfg.PaperFactor))
	cfg.PaperFactorMCX = normalizeFactor(envStr("PAPER_FACTOR_MCX", cfg.PaperFactorMCX))
	cfg.PaperCooldown = envInt("PAPER_COOLDOWN_SEC", cfg.PaperCooldown)
	cfg.PaperCycleMS = envInt("PAPER_CYCLE_MS", cfg.PaperCycleMS)
	if cfg.PaperCycleMS < 500 {
		cfg.PaperCycleMS = 500
	}

	cfg.TradeMode = strings.ToLower(envStr("TRADE_MODE", cfg.TradeMode))
	if cfg.TradeMode != "live" {
		cfg.TradeMode = "paper"
	}
	cfg.EnableLiveTrading = envBool("ENABLE_LIVE_TRADING", false)

	cfg.TrendOnly = envBool("TREND_ONLY", cfg.TrendOnly)
	cfg.MinConfirmation = envInt("MIN_CONFIRMATION", cfg.MinConfirmation)
	cfg.MinRR = envFloat("MIN_RR", cfg.MinRR)
	cfg.JackpotOnly = envBool("JACKPOT_ONLY", false)
	cfg.JackpotTouchLookback = envInt("JACKPOT_TOUCH_LOOKBACK_SEC", cfg.JackpotTouchLookback)

	// Jackpot thresholds never drop below the base entry thresholds.
	cfg.JackpotMinConfirmation = envInt("JACKPOT_MIN_CONFIRMATION", max(cfg.MinConfirmation, 3))
	cfg.JackpotMinRR = envFloat("JACKPOT_MIN_RR", max(cfg.MinRR, 2.2))

	cfg.MinVolumeAccel = envFloat("MIN_VOLUME_ACCEL", cfg.MinVolumeAccel)
	cfg.MinProbabilityScore = envFloat("MIN_PROBABILITY_SCORE", cfg.MinProbabilityScore)
	cfg.MaxSpikePointsMult = envFloat("MAX_SPIKE_POINTS_MULT", cfg.MaxSpikePointsMult)

	cfg.MaxOrdersPerDay = envInt("MAX_ORDERS_PER_DAY", cfg.MaxOrdersPerDay)
	cfg.MaxOpenPositions = envInt("MAX_OPEN_POSITIONS", cfg.MaxOpenPositions)
	cfg.MaxMarginUsedPct = envFloat("MAX_MARGIN_USED_PCT", cfg.MaxMarginUsedPct)
	return cfg
}

// LiveArmed reports whether live mode is both selected and explicitly enabled.
func (c *Config) LiveArmed() bool {
	return c.TradeMode == "live" && c.EnableLiveTrading
}

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
	case "micro":
		return "micro"
	case "mini":
		return "mini"
	case "mega":
		return "mega"
	default:
		return "smart"
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "y", "yes", "on":
		return true
	case "0", "false", "n", "no", "off":
		return false
	default:
		return def
	}
}
