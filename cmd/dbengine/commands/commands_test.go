package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-dbengine/pkg/cache"
	"github.com/ruslano69/tdtp-dbengine/pkg/database"
	"github.com/ruslano69/tdtp-dbengine/pkg/flatfile"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
	"github.com/ruslano69/tdtp-dbengine/pkg/security"
	"github.com/ruslano69/tdtp-dbengine/pkg/storage"
)

const itemsDDL = `CREATE TABLE items (id INTEGER PRIMARY KEY, grp TEXT, name TEXT)`

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

func seeded(t *testing.T) *sqlite.Adapter {
	return openDB(t, "src.db",
		itemsDDL,
		`INSERT INTO items VALUES (1, 'a', 'x'), (2, 'a', 'y'), (3, 'b', 'z')`,
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`,
		`INSERT INTO notes VALUES (1, 'keep')`,
	)
}

func count(t *testing.T, a *sqlite.Adapter, table string) int {
	t.Helper()
	var n int
	if err := a.DB().QueryRowContext(context.Background(), "select count(*) from "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

type fakeUploader struct {
	path string
	meta map[string]string
	err  error
}

func (f *fakeUploader) UploadFile(_ context.Context, path string, meta map[string]string) (storage.Object, error) {
	if f.err != nil {
		return storage.Object{}, f.err
	}
	f.path, f.meta = path, meta
	return storage.Object{Bucket: "b", Key: "dumps/" + filepath.Base(path)}, nil
}

func TestListTables(t *testing.T) {
	var buf bytes.Buffer
	if err := ListTables(context.Background(), &buf, seeded(t)); err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 table(s)") || !strings.Contains(out, "items") || !strings.Contains(out, "notes") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestListTablesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := ListTables(context.Background(), &buf, openDB(t, "empty.db")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No tables found") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDumpToStdout(t *testing.T) {
	var buf bytes.Buffer
	summary, err := Dump(context.Background(), &buf, seeded(t), DumpOptions{Exclude: []string{"notes"}})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "insert into items") || strings.Contains(out, "notes") {
		t.Errorf("unexpected dump:\n%s", out)
	}
	if !summary.Success() || summary.Rows() != 3 {
		t.Errorf("summary: %s", summary)
	}
}

func TestDumpReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seeded(t)
	path := filepath.Join(t.TempDir(), "nightly.sql.gz")

	if _, err := Dump(ctx, nil, src, DumpOptions{Output: path, Compression: processors.FromFilename(path)}); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	dst := openDB(t, "dst.db", itemsDDL, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	summary, err := Reload(ctx, dst, ReloadOptions{Input: path})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !summary.Success() {
		t.Fatalf("reload failures: %v", summary.Err())
	}
	if n := count(t, dst, "items"); n != 3 {
		t.Errorf("items = %d, want 3", n)
	}
	if n := count(t, dst, "notes"); n != 1 {
		t.Errorf("notes = %d, want 1", n)
	}
}

func TestDumpUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sql")
	up := &fakeUploader{}

	summary, err := Dump(context.Background(), nil, seeded(t), DumpOptions{Output: path, Upload: up})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if up.path != path {
		t.Errorf("uploaded %q, want %q", up.path, path)
	}
	if up.meta["checksum"] == "" || up.meta["job-id"] != summary.JobID {
		t.Errorf("metadata = %v", up.meta)
	}
	if !summary.Success() {
		t.Errorf("summary: %s", summary)
	}
}

func TestDumpUploadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sql")
	up := &fakeUploader{err: errors.New("bucket gone")}

	summary, err := Dump(context.Background(), nil, seeded(t), DumpOptions{Output: path, Upload: up})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if summary.Success() {
		t.Error("summary should record the failed upload")
	}
	// сам дамп остается на диске
	if _, err := os.Stat(path); err != nil {
		t.Errorf("dump file missing: %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("listed tables", func(t *testing.T) {
		a := seeded(t)
		if _, err := Clear(ctx, a, []string{"items"}, ReloadOptions{}); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if count(t, a, "items") != 0 || count(t, a, "notes") != 1 {
			t.Errorf("items %d notes %d", count(t, a, "items"), count(t, a, "notes"))
		}
	})

	t.Run("all but excluded", func(t *testing.T) {
		a := seeded(t)
		if _, err := Clear(ctx, a, nil, ReloadOptions{Exclude: []string{"notes"}}); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if count(t, a, "items") != 0 || count(t, a, "notes") != 1 {
			t.Errorf("items %d notes %d", count(t, a, "items"), count(t, a, "notes"))
		}
	})
}

func TestQueryCSV(t *testing.T) {
	ctx := context.Background()
	db := database.New(seeded(t), "src")

	tests := []struct {
		name   string
		cached bool
	}{
		{"streamed", false},
		{"cached", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			summary, err := Query(ctx, &buf, db, QueryOptions{
				SQL:    "select grp, name from items order by id",
				CSV:    database.CSVOptions{IncludeHeader: true, ConflateColumns: []string{"grp"}},
				Cached: tt.cached,
			})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			want := "grp,name\na,x\n,y\nb,z\n"
			if buf.String() != want {
				t.Errorf("output = %q, want %q", buf.String(), want)
			}
			if summary.Rows() != 3 {
				t.Errorf("rows = %d, want 3", summary.Rows())
			}
		})
	}
}

func TestQueryCachedUsesStore(t *testing.T) {
	ctx := context.Background()
	a := seeded(t)
	db := database.New(a, "src", database.WithCache(cache.NewMemory(0)))
	opts := QueryOptions{SQL: "select name from items order by id", Cached: true}

	if _, err := Query(ctx, &bytes.Buffer{}, db, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := a.DB().ExecContext(ctx, "delete from items"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := Query(ctx, &buf, db, opts); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "x\ny\nz\n" {
		t.Errorf("cached output = %q", buf.String())
	}
}

func TestQuerySaveAs(t *testing.T) {
	db := database.New(seeded(t), "src")
	path := filepath.Join(t.TempDir(), "items.tsv")

	summary, err := Query(context.Background(), nil, db, QueryOptions{
		SQL:    "select id, name from items order by id",
		Output: path,
		Format: database.FormatTSV,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "id\tname\n1\tx\n") {
		t.Errorf("file = %q", data)
	}
	if summary.Rows() != 3 {
		t.Errorf("rows = %d", summary.Rows())
	}
}

func TestQuerySaveAsUpload(t *testing.T) {
	db := database.New(seeded(t), "src")
	path := filepath.Join(t.TempDir(), "items.csv")
	up := &fakeUploader{}

	summary, err := Query(context.Background(), nil, db, QueryOptions{
		SQL:    "select id from items",
		Output: path,
		Format: database.FormatCSV,
		Upload: up,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if up.path != path || up.meta["rows"] != "3" || up.meta["checksum"] == "" {
		t.Errorf("upload = %q %v", up.path, up.meta)
	}
	if !summary.Success() || summary.Rows() != 3 {
		t.Errorf("summary: %s", summary)
	}
}

func TestQueryRequiresSQL(t *testing.T) {
	db := database.New(seeded(t), "src")
	if _, err := Query(context.Background(), &bytes.Buffer{}, db, QueryOptions{}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestQueryFlatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, []byte("apple,3\npear,5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fileOpts := flatfile.Options{TempDir: dir}

	var buf bytes.Buffer
	_, err := QueryFlatFile(context.Background(), &buf, path, fileOpts, QueryOptions{
		SQL: "select cola from sheet1 where colb > 4",
	})
	if err != nil {
		t.Fatalf("QueryFlatFile() error = %v", err)
	}
	if buf.String() != "pear\n" {
		t.Errorf("output = %q, want %q", buf.String(), "pear\n")
	}

	buf.Reset()
	if _, err := QueryFlatFile(context.Background(), &buf, path, fileOpts, QueryOptions{}); err != nil {
		t.Fatalf("QueryFlatFile() default query error = %v", err)
	}
	if !strings.Contains(buf.String(), "apple") || !strings.Contains(buf.String(), "pear") {
		t.Errorf("default query output = %q", buf.String())
	}

	buf.Reset()
	if err := FlatFileTables(context.Background(), &buf, path, fileOpts); err != nil {
		t.Fatalf("FlatFileTables() error = %v", err)
	}
	if buf.String() != "sheet1: 2 row(s)\n" {
		t.Errorf("tables = %q", buf.String())
	}
}

func TestQueryGuard(t *testing.T) {
	a := seeded(t)
	db := database.New(a, "src")

	_, err := Query(context.Background(), &bytes.Buffer{}, db, QueryOptions{
		SQL:   "delete from items",
		Guard: security.NewQueryGuard(false),
	})
	if !errors.Is(err, security.ErrNotReadOnly) {
		t.Fatalf("Query() error = %v, want ErrNotReadOnly", err)
	}
	if n := count(t, a, "items"); n != 3 {
		t.Errorf("items = %d after rejected delete", n)
	}
}
