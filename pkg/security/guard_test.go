package security

import (
	"errors"
	"strings"
	"testing"
)

func TestQueryGuardReadOnly(t *testing.T) {
	g := NewQueryGuard(false)

	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"select", "SELECT * FROM users", false},
		{"lower case with semicolon", "select id from users;", false},
		{"cte", "WITH t AS (SELECT 1 AS x) SELECT x FROM t", false},
		{"keyword in literal", "select * from log where msg = 'drop table users; --'", false},
		{"keyword in quoted identifier", `select "delete" from "update"`, false},
		{"bracketed identifier", "select [insert] from [dbo].[t]", false},
		{"column names containing keywords", "select deleted_at, created_by from t", false},
		{"comment", "select 1 -- drop table x", false},
		{"replace function", "select replace(name, 'a', 'b') from t", false},

		{"insert", "INSERT INTO users VALUES (1)", true},
		{"delete", "delete from users", true},
		{"two statements", "select 1; drop table users", true},
		{"select into", "select * into backup from users", true},
		{"writable cte", "with d as (delete from t returning *) select * from d", true},
		{"mysql executable comment", "select 1 /*! ; drop table t */", true},
		{"pragma", "pragma journal_mode=off", true},
		{"empty", "  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
			}
		})
	}
}

func TestQueryGuardErrNotReadOnly(t *testing.T) {
	err := NewQueryGuard(false).Check("update t set a = 1")
	if !errors.Is(err, ErrNotReadOnly) {
		t.Fatalf("error = %v, want ErrNotReadOnly", err)
	}
	if !strings.Contains(err.Error(), "UPDATE") {
		t.Errorf("error %q does not name the statement", err)
	}
}

func TestQueryGuardAllowWrites(t *testing.T) {
	var nilGuard *QueryGuard
	for _, g := range []*QueryGuard{NewQueryGuard(true), nilGuard} {
		if !g.AllowWrites() {
			t.Error("AllowWrites() = false")
		}
		if err := g.Check("drop table users"); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	}
	if NewQueryGuard(false).AllowWrites() {
		t.Error("read-only guard allows writes")
	}
}

func TestKeywords(t *testing.T) {
	got := strings.Join(Keywords("select a1, 'x' from /* c */ t where b = \"y\" -- z\n order by a1"), " ")
	want := "SELECT A1 FROM T WHERE B ORDER BY A1"
	if got != want {
		t.Errorf("Keywords() = %q, want %q", got, want)
	}
}
