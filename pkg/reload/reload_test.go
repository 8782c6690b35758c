package reload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-dbengine/pkg/dump"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/progress"
	"github.com/ruslano69/tdtp-dbengine/pkg/report"
)

const partsDDL = `CREATE TABLE parts (id INTEGER PRIMARY KEY, name TEXT DEFAULT 'new', qty INTEGER DEFAULT 7, note TEXT, price REAL DEFAULT 0)`

func openDB(t *testing.T, name string, stmts ...string) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()
	a, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { a.Close(ctx) })
	for _, stmt := range stmts {
		if _, err := a.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	return a
}

func snapshot(t *testing.T, a *sqlite.Adapter) string {
	t.Helper()
	rows, err := a.DB().QueryContext(context.Background(), "select id, name, qty, note, price from parts order by id")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer rows.Close()
	var b strings.Builder
	for rows.Next() {
		var id, qty, note, name, price any
		if err := rows.Scan(&id, &name, &qty, &note, &price); err != nil {
			t.Fatalf("scan: %v", err)
		}
		fmt.Fprintf(&b, "%v|%q|%v|%q|%v\n", id, name, qty, note, price)
	}
	return b.String()
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openDB(t, "src.db",
		partsDDL,
		`INSERT INTO parts VALUES (1, 'new', 7, NULL, 0)`,
		`INSERT INTO parts VALUES (2, 'it''s a \ part', 3, 'line1`+"\n"+`line2; done', 1.5)`,
		`INSERT INTO parts (id, name) VALUES (3, NULL)`,
		`INSERT INTO parts (id, note) VALUES (4, 'a' || char(0) || 'b' || char(13) || 'c' || char(26) || 'd\e')`,
	)

	path := filepath.Join(t.TempDir(), "parts.sql.gz")
	if _, err := dump.New(src, dump.Options{Truncate: true, DisableForeignKeys: true}).
		DumpFile(ctx, path, processors.CompressionGzip, 0); err != nil {
		t.Fatalf("DumpFile() error = %v", err)
	}

	dst := openDB(t, "dst.db", partsDDL)
	p := progress.New()
	e := New(dst, Options{}).WithProgress(p)

	summary, err := e.ReloadFile(ctx, path)
	if err != nil {
		t.Fatalf("ReloadFile() error = %v", err)
	}
	if !summary.Success() {
		t.Fatalf("reload failures: %v", summary.Err())
	}
	want := snapshot(t, src)
	if got := snapshot(t, dst); got != want {
		t.Errorf("round trip mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
	if p.Current() == 0 {
		t.Error("progress not counted")
	}

	// повторная загрузка того же дампа дает тот же набор строк
	if _, err := e.ReloadFile(ctx, path); err != nil {
		t.Fatalf("second ReloadFile() error = %v", err)
	}
	if got := snapshot(t, dst); got != want {
		t.Errorf("second reload differs\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestReloadContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	dst := openDB(t, "dst.db", partsDDL)

	input := "insert into parts (id) values (1);\n" +
		"insert into missing (id) values (1);\n" +
		"insert into parts (id) values (2);\n"
	summary, err := New(dst, Options{}).Reload(ctx, bytes.NewBufferString(input))
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, failed := summary.Counts(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if summary.Rows() != 2 {
		t.Errorf("executed = %d, want 2", summary.Rows())
	}
	var n int
	dst.DB().QueryRowContext(ctx, "select count(*) from parts").Scan(&n)
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
}

func TestClearDatabase(t *testing.T) {
	ctx := context.Background()
	a := openDB(t, "clear.db",
		partsDDL,
		`CREATE TABLE patch (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO parts (id) VALUES (1), (2)`,
		`INSERT INTO patch (id) VALUES (1)`,
	)

	e := New(a, Options{Exclude: []string{"PATCH"}})
	summary, err := e.ClearDatabase(ctx)
	if err != nil {
		t.Fatalf("ClearDatabase() error = %v", err)
	}
	if !summary.Success() {
		t.Fatalf("clear failures: %v", summary.Err())
	}
	count := func(table string) int {
		var n int
		a.DB().QueryRowContext(ctx, "select count(*) from "+table).Scan(&n)
		return n
	}
	if count("parts") != 0 {
		t.Error("parts not cleared")
	}
	if count("patch") != 1 {
		t.Error("excluded table was cleared")
	}

	summary, err = e.ClearTables(ctx, []string{"patch", "missing"})
	if err != nil {
		t.Fatalf("ClearTables() error = %v", err)
	}
	if count("patch") != 0 {
		t.Error("patch not cleared")
	}
	if len(summary.Outcomes()) != 1 {
		t.Errorf("outcomes = %d, want 1", len(summary.Outcomes()))
	}
}

func TestRestoreIntegrity(t *testing.T) {
	ctx := context.Background()

	summary := report.NewSummary("clear tables")
	restoreIntegrity(ctx, func(context.Context) error { return nil }, summary)
	if ok, failed := summary.Counts(); ok+failed != 0 {
		t.Errorf("successful restore must not add outcomes: %s", summary)
	}

	cause := errors.New("foreign key recreate failed")
	restoreIntegrity(ctx, func(context.Context) error { return cause }, summary)
	if _, failed := summary.Counts(); failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if !errors.Is(summary.Err(), cause) {
		t.Errorf("summary error = %v, want %v", summary.Err(), cause)
	}
}
