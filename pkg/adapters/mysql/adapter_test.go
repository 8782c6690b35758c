package mysql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyError(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}
	if !IsDuplicateKeyError(dup) {
		t.Error("1062 must be a duplicate key error")
	}
	if !IsDuplicateKeyError(fmt.Errorf("insert failed: %w", dup)) {
		t.Error("wrapped 1062 must be a duplicate key error")
	}
	if IsDuplicateKeyError(&mysql.MySQLError{Number: 1146}) {
		t.Error("1146 is not a duplicate key error")
	}
	if IsDuplicateKeyError(nil) {
		t.Error("nil is not a duplicate key error")
	}
}

func TestIsMissingObject(t *testing.T) {
	a := &Adapter{}
	if !a.IsMissingObject(&mysql.MySQLError{Number: 1146, Message: "Table 'db.x' doesn't exist"}) {
		t.Error("1146 must be a missing object")
	}
	if a.IsMissingObject(errors.New("some other error")) {
		t.Error("plain errors are not classified")
	}
}
