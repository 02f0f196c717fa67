package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func seedFirstCloseDB(t *testing.T, path string) {
	t.Helper()
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()

	_, err = raw.Exec(`
		CREATE TABLE first_closes (
			day TEXT, symbol TEXT,
			first_1m_close REAL, first_5m_close REAL, first_15m_close REAL,
			PRIMARY KEY (day, symbol)
		);
		CREATE TABLE history_state (symbol TEXT PRIMARY KEY, done INTEGER);

		INSERT INTO first_closes VALUES
			('2026-08-25', 'NSE|1', 100, 101, 102),
			('2026-08-25', 'NSE|2', 200, 201, 202),
			('2026-08-25', 'NSE|3', 300, 301, 302),
			('2026-08-24', 'NSE|1', 99, 99, 99);

		INSERT INTO history_state VALUES ('NSE|1', 1), ('NSE|2', 0), ('NSE|3', 0);
	`)
	if err != nil {
		t.Fatal(err)
	}
}

func TestFirstCloseDB_Counts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first_closes.db")
	seedFirstCloseDB(t, path)

	f, err := OpenFirstClose(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if n := f.RowCountForDay("2026-08-25"); n != 3 {
		t.Errorf("RowCountForDay = %d, want 3", n)
	}
	if n := f.RowCountForDay("2026-08-24"); n != 1 {
		t.Errorf("RowCountForDay old = %d, want 1", n)
	}
	if n := f.RowCountForDay("2020-01-01"); n != 0 {
		t.Errorf("RowCountForDay empty = %d", n)
	}
	if n := f.PendingCount(); n != 2 {
		t.Errorf("PendingCount = %d, want 2", n)
	}
}

func TestFirstCloseDB_RejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first_closes.db")
	seedFirstCloseDB(t, path)

	f, err := OpenFirstClose(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = f.sql.Exec(`INSERT INTO first_closes VALUES ('2026-08-26', 'NSE|9', 1, 1, 1)`)
	if err == nil {
		t.Fatal("write through the read-only handle succeeded")
	}
	if n := f.RowCountForDay("2026-08-25"); n != 3 {
		t.Errorf("reads after rejected write = %d, want 3", n)
	}
}

func TestFirstCloseDB_MissingDegradesToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	f, err := OpenFirstClose(path)
	if err != nil {
		t.Fatalf("open must defer errors to query time: %v", err)
	}
	defer f.Close()

	if n := f.RowCountForDay("2026-08-25"); n != 0 {
		t.Errorf("missing db row count = %d", n)
	}
	if n := f.PendingCount(); n != 0 {
		t.Errorf("missing db pending = %d", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("read-only open created the database file")
	}
}
