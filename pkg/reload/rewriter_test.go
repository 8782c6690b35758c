package reload

import (
	"testing"

	"github.com/ruslano69/tdtp-dbengine/pkg/dialect"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		dialect dialect.Dialect
		mode    TruncateMode
		in      string
		want    string
	}{
		{"mysql untouched", dialect.MySQLFamily, TruncateAsDelete, `insert into t (a) values ('it\'s')`, `insert into t (a) values ('it\'s')`},
		{"mysql user rename", dialect.MySQLFamily, TruncateAsDelete, "insert into user (id) values (1)", "insert into users (id) values (1)"},
		{"delete user rename", dialect.Postgres, TruncateAsDelete, "delete from user where id=1", "delete from users where id=1"},
		{"update user rename", dialect.H2, TruncateAsDelete, "update user set a=1", "update users set a=1"},
		{"user prefix kept", dialect.MySQLFamily, TruncateAsDelete, "insert into user_status (id) values (1)", "insert into user_status (id) values (1)"},

		{"h2 safe updates", dialect.H2, TruncateAsDelete, "set sql_safe_updates=0", ""},
		{"h2 fk off", dialect.H2, TruncateAsDelete, "set foreign_key_checks=0", "SET REFERENTIAL_INTEGRITY FALSE"},
		{"h2 fk on", dialect.H2, TruncateAsDelete, "SET FOREIGN_KEY_CHECKS = true", "SET REFERENTIAL_INTEGRITY TRUE"},
		{"h2 quote", dialect.H2, TruncateAsDelete, `insert into t (a) values ('it\'s')`, `insert into t (a) values ('it''s')`},
		{"h2 newlines", dialect.H2, TruncateAsDelete, `insert into t (a) values ('a\r\nb\rc')`, "insert into t (a) values ('a\nb\nc')"},
		{"h2 unhex", dialect.H2, TruncateAsDelete, "insert into t (b) values (unhex('0AFF'))", "insert into t (b) values (X'0AFF')"},
		{"h2 bare hex", dialect.H2, TruncateAsDelete, "insert into t (b) values (0xAB12)", "insert into t (b) values (AB12)"},
		{"h2 nul", dialect.H2, TruncateAsDelete, `insert into t (a) values ('a\0b')`, "insert into t (a) values ('a'||CHAR(0)||'b')"},
		{"h2 truncate kept", dialect.H2, TruncateAsDelete, "truncate table t", "truncate table t"},

		{"pg safe updates", dialect.Postgres, TruncateAsDelete, "set sql_safe_updates = 0;", ""},
		{"pg fk", dialect.Postgres, TruncateAsDelete, "set foreign_key_checks=1", "SET CONSTRAINTS ALL DEFERRED"},
		{"pg binary", dialect.Postgres, TruncateAsDelete, "insert into t (a,b) values (1,X'0aff')", `insert into t (a,b) values (1,E'\\x0aff')`},
		{"pg unhex", dialect.Postgres, TruncateAsDelete, "insert into t (b) values (unhex('01'))", `insert into t (b) values (E'\\x01')`},
		{"pg escapes", dialect.Postgres, TruncateAsDelete, `insert into t (a) values ('it\'s\nx\\y')`, "insert into t (a) values ('it''s\nx\\y')"},
		{"pg hex in text kept", dialect.Postgres, TruncateAsDelete, `insert into t (a) values ('(X\'41\')')`, `insert into t (a) values ('(X''41'')')`},
		{"pg truncate as delete", dialect.Postgres, TruncateAsDelete, "truncate table t", "delete from t"},
		{"pg truncate strip", dialect.Postgres, TruncateStrip, "truncate table t", ""},
		{"pg truncate keep", dialect.Postgres, TruncateKeep, "truncate table t", "truncate table t"},

		{"sqlite truncate", dialect.SQLite, TruncateKeep, "truncate table t", "delete from t"},
		{"sqlite fk", dialect.SQLite, TruncateAsDelete, "set foreign_key_checks=0", "PRAGMA foreign_keys=OFF"},
		{"sqlite nul", dialect.SQLite, TruncateAsDelete, `insert into t (a) values ('a\0b\Zc\rd')`, "insert into t (a) values ('a'||char(0)||'b\x1ac\rd')"},
		{"sqlite lone nul", dialect.SQLite, TruncateAsDelete, `insert into t (a) values ('\0')`, "insert into t (a) values (''||char(0)||'')"},
		{"sqlite binary", dialect.SQLite, TruncateAsDelete, "insert into t (b) values (X'00ff')", "insert into t (b) values (X'00ff')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRewriter(tt.dialect, tt.mode).Rewrite(tt.in)
			if got != tt.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTruncateMode(t *testing.T) {
	for in, want := range map[string]TruncateMode{"": TruncateAsDelete, "DELETE": TruncateAsDelete, "strip": TruncateStrip, "keep": TruncateKeep} {
		got, err := ParseTruncateMode(in)
		if err != nil || got != want {
			t.Errorf("ParseTruncateMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTruncateMode("drop"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
