package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyne/caesar/internal/dbcopy"
	"github.com/dyne/caesar/internal/log"
	"github.com/dyne/caesar/internal/schema"
)

// Run lists the tables of a database with their row counts and the text
// columns that can be ciphered.
func Run(ctx context.Context, inPath string, out io.Writer, logger *log.Logger) error {
	if out == nil {
		out = os.Stdout
	}
	db, err := dbcopy.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer db.Close()

	s, err := schema.Load(ctx, db)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Tables:")
	for _, name := range schema.TableOrder(s) {
		tbl := s.Tables[name]
		count, err := rowCount(ctx, db, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "- %s (%d rows)\n", name, count)
		if cols := tbl.TextColumns(); len(cols) > 0 {
			fmt.Fprintf(out, "  text columns: %s\n", strings.Join(cols, ", "))
		}
	}
	logger.Infof("inspect complete")
	return nil
}

func rowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s", schema.QuoteIdent(table))
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}
