//go:build odbc

package odbc

import (
	_ "github.com/alexbrainman/odbc" // регистрирует database/sql драйвер "odbc"
)
