package store

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/santelocale/healthlog/internal/health"
)

// testPassphrase returns a fixed 32-byte passphrase.
func testPassphrase(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 32)
}

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, testPassphrase(1))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// glucoseAt builds a glucose measurement recorded at epoch millis ms.
func glucoseAt(value float64, ms int64) health.Measurement {
	return health.Measurement{
		Kind:        health.KindGlucose,
		Value:       value,
		DisplayText: health.FormatValue(value),
		Annotation:  "A jeun",
		RecordedAt:  ms,
	}
}

// activityAt builds an activity measurement recorded at epoch millis ms.
func activityAt(minutes int, ms int64) health.Measurement {
	return health.NewActivity("Marche", minutes, time.UnixMilli(ms))
}

func mustInsert(t *testing.T, s *Store, m health.Measurement) int64 {
	t.Helper()
	id, err := s.Logs().Insert(context.Background(), m)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	return id
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// writeLegacyDatabase creates a plain SQLite file shaped like the
// unencrypted store that preceded store_meta.
func writeLegacyDatabase(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer db.Close()
	_, err = db.Exec(`
		CREATE TABLE health_logs (id INTEGER PRIMARY KEY, type TEXT, value REAL, timestamp INTEGER);
		INSERT INTO health_logs (type, value, timestamp) VALUES ('GLUCOSE', 120, 1);
	`)
	if err != nil {
		t.Fatalf("write legacy db: %v", err)
	}
}
