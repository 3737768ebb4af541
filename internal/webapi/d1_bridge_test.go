package webapi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newMemoryD1(t *testing.T) *D1Bridge {
	t.Helper()
	d, err := NewD1BridgeMemory("test-db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestD1Bridge_ExecAndQuery(t *testing.T) {
	d := newMemoryD1(t)
	if _, err := d.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)", nil); err != nil {
		t.Fatal(err)
	}
	res, err := d.Exec("INSERT INTO users (name) VALUES (?)", []any{"alice"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Changes != 1 || res.Meta.LastRowID != 1 || !res.Meta.ChangedDB {
		t.Errorf("insert meta = %+v", res.Meta)
	}
	if _, err := d.Exec("INSERT INTO users (name) VALUES (?)", []any{"bob"}); err != nil {
		t.Fatal(err)
	}

	res, err = d.Exec("SELECT id, name FROM users ORDER BY id", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(res.Columns, ",") != "id,name" {
		t.Errorf("columns = %v", res.Columns)
	}
	if len(res.Rows) != 2 || res.Meta.RowsRead != 2 {
		t.Fatalf("rows = %v", res.Rows)
	}
	if res.Rows[1][1] != "bob" {
		t.Errorf("second name = %#v", res.Rows[1][1])
	}
}

func TestD1Bridge_Returning(t *testing.T) {
	d := newMemoryD1(t)
	if _, err := d.Exec("CREATE TABLE t (v TEXT)", nil); err != nil {
		t.Fatal(err)
	}
	res, err := d.Exec("INSERT INTO t (v) VALUES ('x') RETURNING v", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "x" {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestD1Bridge_BlockedStatements(t *testing.T) {
	d := newMemoryD1(t)
	for _, q := range []string{"ATTACH DATABASE 'x.db' AS x", "  detach x", "PRAGMA writable_schema = 1"} {
		if _, err := d.Exec(q, nil); err == nil {
			t.Errorf("%q should be rejected", q)
		}
	}
	if _, err := d.Exec("PRAGMA table_list", nil); err != nil {
		t.Errorf("allowed pragma: %v", err)
	}
}

func TestD1_ValidateDatabaseID(t *testing.T) {
	for _, bad := range []string{"", "../x", "a/b", `a\b`, "a\x00b", strings.Repeat("a", 129)} {
		if ValidateDatabaseID(bad) == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
	if err := ValidateDatabaseID("prod-db_1"); err != nil {
		t.Error(err)
	}
}

func TestOpenD1Database_OnDisk(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenD1Database(dir, "disk")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, err := d.Exec("CREATE TABLE t (v INTEGER)", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "d1", "disk.sqlite3")); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestD1_DecodeParams(t *testing.T) {
	params, err := decodeParams(`[1, 2.5, "s", null, true]`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := params[0].(int64); !ok {
		t.Errorf("integer decoded as %T", params[0])
	}
	if _, ok := params[1].(float64); !ok {
		t.Errorf("float decoded as %T", params[1])
	}
	if params[3] != nil || params[4] != true {
		t.Errorf("params = %#v", params)
	}
	if p, err := decodeParams(""); err != nil || p != nil {
		t.Errorf("empty = %v, %v", p, err)
	}
	if _, err := decodeParams("{"); err == nil {
		t.Error("malformed params should fail")
	}
}
