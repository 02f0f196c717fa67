package db

import (
	"database/sql"
	"fmt"

	"b5factor/internal/logger"
	_ "modernc.org/sqlite"
)

// FirstCloseDB is the producer's first-close store, opened read-only. The
// dashboard only reports counts from it; any error degrades to zeros rather
// than failing a view.
type FirstCloseDB struct {
	sql  *sql.DB
	path string
}

// OpenFirstClose opens the first-close database read-only. A missing file is
// not an error here; queries will simply report zero counts.
func OpenFirstClose(path string) (*FirstCloseDB, error) {
	// mode=ro is a SQLite URI parameter; the driver only applies it when the
	// DSN carries the file: scheme.
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, fmt.Errorf("open first-close db: %w", err)
	}
	return &FirstCloseDB{sql: sqlDB, path: path}, nil
}

// Close closes the connection.
func (f *FirstCloseDB) Close() error {
	return f.sql.Close()
}

// RowCountForDay counts first_closes rows stored for the day.
func (f *FirstCloseDB) RowCountForDay(day string) int {
	var n int
	if err := f.sql.QueryRow(`SELECT COUNT(*) FROM first_closes WHERE day = ?`, day).Scan(&n); err != nil {
		logger.Warn("FirstClose", fmt.Sprintf("row count query failed: %v", err))
		return 0
	}
	return n
}

// PendingCount counts symbols whose history fetch has not completed.
func (f *FirstCloseDB) PendingCount() int {
	var n int
	if err := f.sql.QueryRow(`SELECT COUNT(*) FROM history_state WHERE done = 0`).Scan(&n); err != nil {
		logger.Warn("FirstClose", fmt.Sprintf("pending count query failed: %v", err))
		return 0
	}
	return n
}
