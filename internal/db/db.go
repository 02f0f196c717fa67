package db

import (
	"database/sql"
	"fmt"

	"b5factor/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps the paper-trade SQLite database.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the paper-trade database and runs migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS paper_trades (
				id                TEXT PRIMARY KEY,
				symbol            TEXT NOT NULL,
				tsym              TEXT DEFAULT '',
				exchange          TEXT DEFAULT '',
				day               TEXT NOT NULL,
				timeframe         TEXT NOT NULL,
				factor            TEXT NOT NULL,
				instrument_type   TEXT DEFAULT '',

				close_price       REAL NOT NULL DEFAULT 0,
				points            REAL NOT NULL DEFAULT 0,
				bu1               REAL NOT NULL DEFAULT 0,
				bu2               REAL NOT NULL DEFAULT 0,
				bu3               REAL NOT NULL DEFAULT 0,
				bu4               REAL NOT NULL DEFAULT 0,
				bu5               REAL NOT NULL DEFAULT 0,
				be1               REAL NOT NULL DEFAULT 0,
				be2               REAL NOT NULL DEFAULT 0,
				be3               REAL NOT NULL DEFAULT 0,
				be4               REAL NOT NULL DEFAULT 0,
				be5               REAL NOT NULL DEFAULT 0,

				sl_price          REAL NOT NULL DEFAULT 0,
				tp_price          REAL NOT NULL DEFAULT 0,
				tsl_trigger       REAL NOT NULL DEFAULT 0,
				tsl_active        INTEGER NOT NULL DEFAULT 0,
				tsl_sl_price      REAL NOT NULL DEFAULT 0,

				entry_ltp         REAL NOT NULL DEFAULT 0,
				entry_ts          INTEGER NOT NULL DEFAULT 0,
				exit_ltp          REAL NOT NULL DEFAULT 0,
				exit_ts           INTEGER NOT NULL DEFAULT 0,
				quantity          INTEGER NOT NULL DEFAULT 1,
				reason            TEXT DEFAULT '',

				last_ltp          REAL NOT NULL DEFAULT 0,
				max_ltp           REAL NOT NULL DEFAULT 0,
				min_ltp           REAL NOT NULL DEFAULT 0,
				runup             REAL NOT NULL DEFAULT 0,
				drawdown          REAL NOT NULL DEFAULT 0,
				max_profit_points REAL NOT NULL DEFAULT 0,

				pnl               REAL NOT NULL DEFAULT 0,
				pnl_pct           REAL NOT NULL DEFAULT 0,
				brokerage         REAL NOT NULL DEFAULT 0,
				stt               REAL NOT NULL DEFAULT 0,
				exchange_charges  REAL NOT NULL DEFAULT 0,
				sebi_charges      REAL NOT NULL DEFAULT 0,
				stamp_duty        REAL NOT NULL DEFAULT 0,
				gst               REAL NOT NULL DEFAULT 0,
				total_charges     REAL NOT NULL DEFAULT 0,
				net_pnl           REAL NOT NULL DEFAULT 0,

				status            TEXT NOT NULL DEFAULT 'OPEN',
				updated_at        TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_trades_status ON paper_trades(status);
			CREATE INDEX IF NOT EXISTS idx_trades_symbol ON paper_trades(symbol);
			CREATE INDEX IF NOT EXISTS idx_trades_day    ON paper_trades(day);

			CREATE TABLE IF NOT EXISTS broker_limits (
				day           TEXT PRIMARY KEY,
				orders_placed INTEGER NOT NULL DEFAULT 0,
				open_positions INTEGER NOT NULL DEFAULT 0,
				margin_used   REAL NOT NULL DEFAULT 0,
				updated_at    TEXT NOT NULL DEFAULT ''
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (paper trades)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
