package database

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters/sqlite"
	"github.com/ruslano69/tdtp-dbengine/pkg/cache"
	"github.com/ruslano69/tdtp-dbengine/pkg/core/rowset"
	"github.com/ruslano69/tdtp-dbengine/pkg/processors"
)

func openTestDB(t *testing.T, opts ...Option) *Database {
	t.Helper()
	ctx := context.Background()
	a, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "facade.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	d := New(a, "test", opts...)
	t.Cleanup(func() { d.Close(ctx) })

	for _, stmt := range []string{
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER DEFAULT 7)`,
		`CREATE TABLE pairs (n INTEGER PRIMARY KEY, k INTEGER, a TEXT)`,
		`INSERT INTO pairs (n, k, a) VALUES (1, 1, 'x'), (2, 1, 'y'), (3, 2, 'z')`,
	} {
		if o := d.Execute(ctx, stmt); !o.Success {
			t.Fatalf("setup %q: %v", stmt, o.Err)
		}
	}
	return d
}

func TestCacheKey(t *testing.T) {
	d := openTestDB(t)
	url := d.adapter.URL()

	tests := []struct {
		query  string
		params []any
		want   string
	}{
		{"select * from items", nil, url + "~select * from items"},
		{"select * from items where id=?", []any{int64(1)}, url + "~select * from items where id=?~1"},
		{"select * from items where name=?", []any{"bolt"}, url + "~select * from items where name=?~'bolt'"},
		{"select * from items where name=?", []any{nil}, url + "~select * from items where name=?~null"},
	}
	for _, tt := range tests {
		if got := d.cacheKey(tt.query, tt.params); got != tt.want {
			t.Errorf("cacheKey(%q, %v) = %q, want %q", tt.query, tt.params, got, tt.want)
		}
	}
	if d.cacheKey("select ?", []any{int64(1)}) == d.cacheKey("select ?", []any{int64(2)}) {
		t.Error("parameters must be part of the key")
	}
}

func TestFindCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t, WithCache(cache.NewMemory(0)))

	first, err := d.Find(ctx, "select k, a from pairs order by n", false)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if first.Cached {
		t.Error("first Find must not be served from cache")
	}
	second, err := d.Find(ctx, "select k, a from pairs order by n", false)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !second.Cached {
		t.Error("second Find must be served from cache")
	}
	if first.Len() != 3 || second.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d and %d", first.Len(), second.Len())
	}
	if first.Rows[0] == second.Rows[0] {
		t.Error("cached rows must be distinct copies")
	}
	if first.Rows[0].Value("a") != second.Rows[0].Value("a") {
		t.Error("cached rows must be equal")
	}

	second.Rows[0].Set("a", "changed")
	third, _ := d.Find(ctx, "select k, a from pairs order by n", false)
	if got := third.Rows[0].Value("a"); got != "x" {
		t.Errorf("cache entry corrupted by caller: %v", got)
	}

	bypass, _ := d.Find(ctx, "select k, a from pairs order by n", true)
	if bypass.Cached {
		t.Error("bypassed Find must not be served from cache")
	}
}

func TestFindTruncation(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t, WithMaxResults(2))
	for i := 0; i < 5; i++ {
		d.Execute(ctx, "insert into items (name) values ('n')")
	}

	res, err := d.Find(ctx, "select * from items", true)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !res.Truncated {
		t.Error("expected Truncated=true")
	}
	if res.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", res.Len())
	}

	d.SetMaxResults(0)
	res, _ = d.Find(ctx, "select * from items", true)
	if res.Truncated || res.Len() != 5 {
		t.Errorf("unlimited: truncated=%v rows=%d", res.Truncated, res.Len())
	}
}

func TestFindDuplicateColumns(t *testing.T) {
	d := openTestDB(t)
	res, err := d.Find(context.Background(), "select 1 as x, 2 as x, 3 as y", true)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := []string{"x", "x_2", "y"}
	if strings.Join(res.Columns, ",") != strings.Join(want, ",") {
		t.Errorf("Columns = %v, want %v", res.Columns, want)
	}
	if got := res.First().Value("x_2"); got != int64(2) {
		t.Errorf("x_2 = %v (%T)", got, got)
	}
}

func TestFindError(t *testing.T) {
	d := openTestDB(t)
	if _, err := d.Find(context.Background(), "select * from missing_table", true); err == nil {
		t.Fatal("expected error")
	}
	if !d.InError() || d.LastError() == "" {
		t.Error("LastError must be set")
	}
	d.ClearErrors()
	if d.InError() {
		t.Error("ClearErrors must reset the error")
	}
}

func TestFindToCSVConflation(t *testing.T) {
	tests := []struct {
		name string
		opts CSVOptions
		want string
	}{
		{
			name: "single row",
			opts: CSVOptions{ConflateColumns: []string{"k"}, ConflateToSingleRow: true},
			want: "1,\"x\ny\"\n2,z\n",
		},
		{
			name: "blank repeated",
			opts: CSVOptions{ConflateColumns: []string{"k"}},
			want: "1,x\n,y\n2,z\n",
		},
		{
			name: "header and footer",
			opts: CSVOptions{IncludeHeader: true, HeaderRows: [][]string{{"report"}}, Footer: []string{"end"}},
			want: "report\nk,a\n1,x\n1,y\n2,z\nend\n",
		},
		{
			name: "tab delimiter",
			opts: CSVOptions{Delimiter: '\t'},
			want: "1\tx\n1\ty\n2\tz\n",
		},
	}

	ctx := context.Background()
	d := openTestDB(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := d.FindToCSV(ctx, &buf, "select k, a from pairs order by n", tt.opts)
			if err != nil {
				t.Fatalf("FindToCSV() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
			if n == 0 {
				t.Error("expected non-zero row count")
			}
		})
	}
}

func TestWriteCSVKeepsResult(t *testing.T) {
	d := openTestDB(t)
	res, err := d.Find(context.Background(), "select k, a from pairs order by n", true)
	if err != nil {
		t.Fatal(err)
	}

	for _, single := range []bool{false, true} {
		opts := CSVOptions{Delimiter: DefaultDelimiter, ConflateColumns: []string{"k"}, ConflateToSingleRow: single}
		var first, second bytes.Buffer
		if _, err := WriteCSV(&first, res, opts); err != nil {
			t.Fatalf("WriteCSV() error = %v", err)
		}
		if _, err := WriteCSV(&second, res, opts); err != nil {
			t.Fatalf("second WriteCSV() error = %v", err)
		}
		if first.String() != second.String() {
			t.Errorf("single=%v: second export %q differs from first %q", single, second.String(), first.String())
		}
		if single && first.String() != "1,\"x\ny\"\n2,z\n" {
			t.Errorf("single-row output = %q", first.String())
		}
		if res.Rows[0].Value("a") != "x" || res.Rows[1].Value("k") != int64(1) {
			t.Errorf("single=%v: result rows modified: %v %v", single, res.Rows[0].Map(), res.Rows[1].Map())
		}
	}
}

func TestCSVValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{true, "Y"},
		{false, "N"},
		{int64(42), "42"},
		{2.5, "2.5"},
		{[]byte("raw"), "raw"},
		{"text", "text"},
	}
	for _, tt := range tests {
		if got := csvValue(tt.value, ""); got != tt.want {
			t.Errorf("csvValue(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestAddRecordRefresh(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	row := rowset.RowOf("name", "bolt", "unknown", 1)
	o, fresh := d.AddRecord(ctx, "items", row, true)
	if !o.Success {
		t.Fatalf("AddRecord() failed: %v", o.Err)
	}
	if fresh == nil {
		t.Fatal("expected refreshed row")
	}
	if fresh.Value("id") != int64(1) {
		t.Errorf("id = %v", fresh.Value("id"))
	}
	if fresh.Value("qty") != int64(7) {
		t.Errorf("default qty not refreshed: %v", fresh.Value("qty"))
	}
	// переданная строка дополняется на месте
	if row.Value("id") != int64(1) || row.Value("qty") != int64(7) || row.Value("name") != "bolt" {
		t.Errorf("row not updated in place: %v", row.Map())
	}
	if d.InTransaction() {
		t.Error("AddRecord must commit its own transaction")
	}
}

func TestAddRecordSetsKey(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	d.AddRecord(ctx, "items", rowset.RowOf("name", "nut"), false)

	row := rowset.RowOf("name", "bolt")
	o, fresh := d.AddRecord(ctx, "items", row, false)
	if !o.Success {
		t.Fatalf("AddRecord() failed: %v", o.Err)
	}
	if fresh != nil {
		t.Errorf("unexpected refreshed row without refresh: %v", fresh.Map())
	}
	if row.Value("id") != int64(2) {
		t.Errorf("id = %#v, want 2", row.Value("id"))
	}
	if row.Has("qty") {
		t.Error("defaults are read back only on refresh")
	}
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	d.AddRecord(ctx, "items", rowset.RowOf("name", "bolt", "qty", 3), false)

	o, fresh := d.UpdateRecord(ctx, "items", "id=1", rowset.RowOf("name", "NULL", "qty", "5"), true)
	if !o.Success {
		t.Fatalf("UpdateRecord() failed: %v", o.Err)
	}
	if o.Rows != 1 {
		t.Errorf("Rows = %d, want 1", o.Rows)
	}
	if fresh.Value("name") != nil {
		t.Errorf("name = %v, want NULL", fresh.Value("name"))
	}
	if fresh.Value("qty") != int64(5) {
		t.Errorf("qty = %v", fresh.Value("qty"))
	}

	if o, _ := d.UpdateRecord(ctx, "items", "", rowset.RowOf("name", "x"), false); o.Success {
		t.Error("update without where must fail")
	}
	if o, _ := d.UpdateRecord(ctx, "items", "id=1", rowset.RowOf("missing", "x"), false); o.Success {
		t.Error("update of unknown column must fail")
	}
	if d.LastError() == "" {
		t.Error("LastError must be set after failure")
	}
	if _, failed := d.Summary().Counts(); failed != 2 {
		t.Errorf("summary failures = %d, want 2", failed)
	}
}

func TestTransactionOwnership(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	if err := d.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if o, _ := d.AddRecord(ctx, "items", rowset.RowOf("name", "nut"), false); !o.Success {
		t.Fatalf("AddRecord() failed: %v", o.Err)
	}
	if !d.InTransaction() {
		t.Fatal("inner operation must not end the outer transaction")
	}
	if err := d.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	res, _ := d.Find(ctx, "select * from items", true)
	if res.Len() != 0 {
		t.Errorf("rolled back insert is visible: %d rows", res.Len())
	}
	if err := d.Commit(ctx); err != nil {
		t.Errorf("Commit without transaction must be a no-op: %v", err)
	}
}

func TestBatchFlow(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	for _, name := range []string{"a", "b", "c"} {
		if err := d.AddBatch(ctx, "items", rowset.RowOf("name", name, "qty", 1)); err != nil {
			t.Fatalf("AddBatch() error = %v", err)
		}
	}
	if !d.InTransaction() {
		t.Fatal("batch must run inside a transaction")
	}
	o := d.ExecuteBatch(ctx, "items")
	if !o.Success || o.Rows != 3 {
		t.Fatalf("ExecuteBatch() = %+v", o)
	}
	if d.InTransaction() {
		t.Error("batch must commit the transaction it started")
	}
	keys := d.GeneratedKeys("ITEMS")
	if len(keys) != 3 || keys[0] != 1 || keys[2] != 3 {
		t.Errorf("GeneratedKeys = %v", keys)
	}

	// следующий AddBatch открывает новый пакет
	if err := d.AddBatch(ctx, "items", rowset.RowOf("name", "d")); err != nil {
		t.Fatalf("AddBatch() error = %v", err)
	}
	d.CloseBatch(ctx, "items")
	if d.InTransaction() {
		t.Error("CloseBatch must roll back the batch transaction")
	}

	res, _ := d.Find(ctx, "select * from items", true)
	if res.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", res.Len())
	}

	if o := d.ExecuteBatch(ctx, "items"); o.Success {
		t.Error("ExecuteBatch without batch must fail")
	}
}

func TestBatchInsideOuterTransaction(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	d.Begin(ctx)
	d.AddBatch(ctx, "items", rowset.RowOf("name", "a"))
	if o := d.ExecuteBatch(ctx, "items"); !o.Success {
		t.Fatalf("ExecuteBatch() failed: %v", o.Err)
	}
	if !d.InTransaction() {
		t.Fatal("outer transaction must stay open")
	}
	if err := d.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	res, _ := d.Find(ctx, "select * from items", true)
	if res.Len() != 1 {
		t.Errorf("expected 1 row, got %d", res.Len())
	}
}

func TestLookupAndInClause(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)

	l, err := d.GetLookup(ctx, "select n, k, a from pairs", []string{"k", "a"}, false)
	if err != nil {
		t.Fatalf("GetLookup() error = %v", err)
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d", l.Len())
	}
	row, ok := l.Get(int64(1), "Y")
	if !ok || row.Value("n") != int64(2) {
		t.Errorf("Get(1, Y) = %v, %v", row, ok)
	}
	if _, err := d.GetLookup(ctx, "select * from pairs", nil, false); err == nil {
		t.Error("expected error without key columns")
	}

	rows := []*rowset.Row{
		rowset.RowOf("id", int64(1)),
		rowset.RowOf("id", "a"),
		rowset.RowOf("id", nil),
	}
	if got := InClauseFromResults(rows, ""); got != "1,'a',null" {
		t.Errorf("InClauseFromResults = %q", got)
	}

	list, err := d.FindList(ctx, "select a from pairs order by n", "", true)
	if err != nil || len(list) != 3 || list[2] != "z" {
		t.Errorf("FindList = %v, %v", list, err)
	}
}

func TestSaveAsCompressedCSV(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	d.AddRecord(ctx, "items", rowset.RowOf("name", "bolt"), false)

	path := filepath.Join(t.TempDir(), "items.csv.gz")
	o := d.SaveAs(ctx, "select * from items", path, FormatCSV, processors.CompressionGzip)
	if !o.Success {
		t.Fatalf("SaveAs() failed: %v", o.Err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	r, c, err := processors.NewReader(f)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if c != processors.CompressionGzip {
		t.Errorf("compression = %q", c)
	}
	data, _ := io.ReadAll(r)
	if got := string(data); got != "id,name,qty\n1,bolt,7\n" {
		t.Errorf("content = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatCSV, "CSV": FormatCSV, "tab": FormatTSV, "excel": FormatExcel}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
}
