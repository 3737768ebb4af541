package webapi

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cryguy/worker-go/internal/core"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// D1Bridge backs one D1 binding with its own SQLite database.
type D1Bridge struct {
	DB         *sql.DB
	DatabaseID string
}

var _ core.D1Store = (*D1Bridge)(nil)

// ValidateDatabaseID rejects IDs that could escape the data directory.
func ValidateDatabaseID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("database ID must not be empty")
	case len(id) > 128:
		return fmt.Errorf("database ID too long")
	case strings.Contains(id, ".."):
		return fmt.Errorf("database ID contains path traversal")
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("database ID contains path separator")
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("database ID contains null byte")
	}
	return nil
}

// OpenD1Database opens (or creates) {dataDir}/d1/{databaseID}.sqlite3.
// An empty dataDir gives an in-memory database.
func OpenD1Database(dataDir, databaseID string) (*D1Bridge, error) {
	if err := ValidateDatabaseID(databaseID); err != nil {
		return nil, err
	}
	if dataDir == "" {
		return NewD1BridgeMemory(databaseID)
	}
	dir := filepath.Join(dataDir, "d1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating D1 directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, databaseID+".sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("opening D1 database %q: %w", databaseID, err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return &D1Bridge{DB: db, DatabaseID: databaseID}, nil
}

// NewD1BridgeMemory creates an in-memory database. A single connection is
// kept so every statement sees the same database.
func NewD1BridgeMemory(databaseID string) (*D1Bridge, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory D1 database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &D1Bridge{DB: db, DatabaseID: databaseID}, nil
}

// Close closes the database.
func (d *D1Bridge) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

var allowedPragmas = []string{"PRAGMA TABLE_INFO", "PRAGMA TABLE_LIST", "PRAGMA INDEX_LIST",
	"PRAGMA INDEX_INFO", "PRAGMA FOREIGN_KEY_LIST", "PRAGMA JOURNAL_MODE"}

// checkStatement blocks statements that could reach outside the database.
func checkStatement(upper string) error {
	for _, blocked := range []string{"ATTACH", "DETACH"} {
		if strings.HasPrefix(upper, blocked) {
			return fmt.Errorf("D1: %s statements are not allowed", blocked)
		}
	}
	if strings.HasPrefix(upper, "PRAGMA") {
		for _, a := range allowedPragmas {
			if strings.HasPrefix(upper, a) {
				return nil
			}
		}
		return fmt.Errorf("D1: this PRAGMA is not allowed")
	}
	return nil
}

func returnsRows(upper string) bool {
	return strings.HasPrefix(upper, "SELECT") ||
		strings.HasPrefix(upper, "PRAGMA") ||
		strings.HasPrefix(upper, "WITH") ||
		strings.HasPrefix(upper, "VALUES") ||
		strings.Contains(upper, " RETURNING ")
}

// Exec runs one statement and returns columns, rows and metadata.
func (d *D1Bridge) Exec(sqlStr string, bindings []any) (*core.D1ExecResult, error) {
	start := time.Now()
	upper := strings.ToUpper(strings.TrimSpace(sqlStr))
	if err := checkStatement(upper); err != nil {
		return nil, err
	}

	if returnsRows(upper) {
		res, err := d.query(sqlStr, bindings)
		if err != nil {
			return nil, err
		}
		res.Meta.Duration = float64(time.Since(start).Microseconds()) / 1000
		return res, nil
	}

	result, err := d.DB.Exec(sqlStr, bindings...)
	if err != nil {
		return nil, fmt.Errorf("D1: exec error: %w", err)
	}
	changes, _ := result.RowsAffected()
	lastID, _ := result.LastInsertId()
	return &core.D1ExecResult{
		Columns: []string{},
		Rows:    [][]any{},
		Meta: core.D1Meta{
			ChangedDB:   changes > 0,
			Changes:     changes,
			LastRowID:   lastID,
			RowsWritten: int(changes),
			Duration:    float64(time.Since(start).Microseconds()) / 1000,
		},
	}, nil
}

func (d *D1Bridge) query(sqlStr string, bindings []any) (*core.D1ExecResult, error) {
	rows, err := d.DB.Query(sqlStr, bindings...)
	if err != nil {
		return nil, fmt.Errorf("D1: query error: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("D1: columns error: %w", err)
	}
	out := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("D1: scan error: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("D1: rows iteration error: %w", err)
	}
	return &core.D1ExecResult{
		Columns: columns,
		Rows:    out,
		Meta:    core.D1Meta{RowsRead: len(out)},
	}, nil
}
