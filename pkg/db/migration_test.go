package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies a fresh database gets every table and the
// columns the queries rely on.
func TestInitDBCreatesSchema(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	want := map[string][]string{
		"users":     {"open_id", "name", "email", "login_method", "role", "created_at", "updated_at", "last_signed_in"},
		"analyses":  {"id", "text", "language", "score", "suggestions", "buzzwords", "source_kind", "source_ref", "source_title", "created_at"},
		"buzzwords": {"word", "language", "count", "updated_at"},
	}
	for table, cols := range want {
		got := tableColumns(t, db, table)
		for _, c := range cols {
			if !got[c] {
				t.Fatalf("expected column %s.%s, got %v", table, c, got)
			}
		}
	}
}

func TestInitDBIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := InitDB(context.Background(), db); err != nil {
		t.Fatalf("second InitDB: %v", err)
	}
}

func TestBuzzwordKeyIsUnique(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	_, err := db.Exec(`INSERT INTO buzzwords (word, language, count, updated_at) VALUES ('agile', 'en', 1, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = db.Exec(`INSERT INTO buzzwords (word, language, count, updated_at) VALUES ('agile', 'en', 1, CURRENT_TIMESTAMP)`)
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestOpenFileDatabaseUsesWAL(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "wal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal, got %q", mode)
	}
}

func TestWithParams(t *testing.T) {
	if got := withParams("a.db", "_busy_timeout=5000", "_txlock=immediate"); got != "a.db?_busy_timeout=5000&_txlock=immediate" {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := withParams("file:a.db?_busy_timeout=1", "_busy_timeout=5000"); got != "file:a.db?_busy_timeout=1" {
		t.Fatalf("existing params must win, got %q", got)
	}
}
