// Package commands реализует команды dbengine поверх пакетов движка.
// Команды пишут результат в переданный io.Writer и возвращают сводку
// задания, которую main публикует в Redis и брокер.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/ruslano69/tdtp-dbengine/pkg/adapters"
)

// ListTables lists all tables in the database
func ListTables(ctx context.Context, w io.Writer, adapter adapters.Adapter) error {
	tables, err := adapter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	if len(tables) == 0 {
		fmt.Fprintln(w, "No tables found")
		return nil
	}

	version, err := adapter.GetDatabaseVersion(ctx)
	if err != nil {
		version = "unknown"
	}
	fmt.Fprintf(w, "%s %s (%s), %d table(s):\n", adapter.GetDatabaseType(), version, adapter.Dialect(), len(tables))
	for i, table := range tables {
		fmt.Fprintf(w, "  %d. %s\n", i+1, table)
	}

	return nil
}
