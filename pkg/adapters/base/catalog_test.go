package base

import (
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

func TestNormalizeDefault(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		hasDef bool
	}{
		{"0", "0", true},
		{"((0))", "0", true},
		{"('abc')", "abc", true},
		{"'abc'::character varying", "abc", true},
		{"'it''s'", "it's", true},
		{"N'text'", "text", true},
		{"b'1'", "1", true},
		{"0::smallint", "0", true},
		{"true", "true", true},
		{"NULL", "", false},
		{"NULL::character varying", "", false},
		{"nextval('users_id_seq'::regclass)", "nextval('users_id_seq'::regclass)", true},
		{"CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP", true},
		{"(getdate())", "getdate()", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeDefault(tt.raw)
			if ok != tt.hasDef {
				t.Fatalf("NormalizeDefault(%q) ok = %v, want %v", tt.raw, ok, tt.hasDef)
			}
			if got != tt.want {
				t.Errorf("NormalizeDefault(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := QuoteIdentifier(dialect.MySQLFamily, "order"); got != "`order`" {
		t.Errorf("mysql: %s", got)
	}
	if got := QuoteIdentifier(dialect.SQLServerFamily, "a]b"); got != "[a]]b]" {
		t.Errorf("mssql: %s", got)
	}
	if got := QuoteIdentifier(dialect.Postgres, `we"ird`); got != `"we""ird"` {
		t.Errorf("postgres: %s", got)
	}
}

func TestContainsFold(t *testing.T) {
	names := []string{"Users", "orders"}
	if !ContainsFold(names, "USERS") || ContainsFold(names, "items") {
		t.Error("ContainsFold mismatch")
	}
}
