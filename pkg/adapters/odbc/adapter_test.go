package odbc

import (
	"context"
	"strings"
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

func TestRedact(t *testing.T) {
	got := redact("Driver=Vertica;Server=db1;UID=etl;PWD=secret;Database=dw;")
	if strings.Contains(got, "secret") {
		t.Fatalf("password leaked: %q", got)
	}
	if got != "Driver=Vertica;Server=db1;UID=etl;Database=dw" {
		t.Errorf("unexpected redacted DSN %q", got)
	}
}

func TestCatalogsComplete(t *testing.T) {
	for d, c := range catalogs {
		if c.tables == "" || c.tableExists == "" || c.primaryKeys == "" || c.autoIncrement == "" || c.version == "" {
			t.Errorf("%v: incomplete catalog", d)
		}
		if c.defaultSchema == "" {
			t.Errorf("%v: default schema missing", d)
		}
	}
	for _, d := range []dialect.Dialect{dialect.H2, dialect.Vertica, dialect.SQLServerFamily} {
		if _, ok := catalogs[d]; !ok {
			t.Errorf("%v: no catalog", d)
		}
	}
}

func TestConnectUnknownFamily(t *testing.T) {
	a := &Adapter{}
	err := a.Connect(context.Background(), adapters.Config{Type: AdapterType, DSN: "DSN=legacy"})
	if err == nil {
		t.Fatal("expected error for unknown DSN family")
	}
}

func TestSybaseDefaultsEmpty(t *testing.T) {
	a := &Adapter{catalog: catalogs[dialect.SQLServerFamily]}
	defaults, err := a.GetColumnDefaults(context.Background(), "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defaults) != 0 {
		t.Errorf("expected no defaults, got %v", defaults)
	}
}
