// Package dbcopy copies a SQLite database and runs configured text columns
// through a Caesar cipher on the way.
package dbcopy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dyne/caesar/internal/caesar"
	"github.com/dyne/caesar/internal/config"
	"github.com/dyne/caesar/internal/log"
	"github.com/dyne/caesar/internal/schema"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

const defaultBatchSize = 256

type Options struct {
	InPath  string
	OutPath string
	Config  *config.Config
	// Default fills the fields a column config leaves empty and is the cipher
	// used for every text column when AllText is set.
	Default   *caesar.Cipher
	AllText   bool
	FKMode    string
	Jobs      int
	BatchSize int
	Logger    *log.Logger
}

type Stats struct {
	Tables int
	Rows   int64
	Values int64
}

func Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.InPath == "" || opts.OutPath == "" {
		return nil, fmt.Errorf("input and output paths are required")
	}
	if sameFile(opts.InPath, opts.OutPath) {
		return nil, fmt.Errorf("output %s would overwrite the input", opts.OutPath)
	}
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	if opts.FKMode == "" {
		opts.FKMode = "on"
	}
	if err := os.RemoveAll(opts.OutPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	inDB, err := Open(opts.InPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer inDB.Close()

	outDB, err := Open(opts.OutPath)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer outDB.Close()
	// PRAGMA foreign_keys is per connection.
	outDB.SetMaxOpenConns(1)

	if err := setFKMode(ctx, outDB, opts.FKMode); err != nil {
		return nil, err
	}

	s, err := schema.Load(ctx, inDB)
	if err != nil {
		return nil, err
	}
	order := included(opts.Config, schema.TableOrder(s))

	if err := createTables(ctx, outDB, s, order); err != nil {
		return nil, err
	}
	stats := &Stats{}
	for _, name := range order {
		tbl := s.Tables[name]
		ciphers, err := ColumnCiphers(opts.Config, tbl, opts.Default, opts.AllText)
		if err != nil {
			return nil, err
		}
		opts.Logger.Infof("copy table %s (%d ciphered columns)", name, len(ciphers))
		rows, values, err := copyTable(ctx, inDB, outDB, tbl, ciphers, opts)
		if err != nil {
			return nil, err
		}
		stats.Tables++
		stats.Rows += rows
		stats.Values += values
	}
	if err := createPostData(ctx, outDB, s, order, opts.Logger); err != nil {
		return nil, err
	}
	opts.Logger.Infof("copy complete: %d tables, %d rows, %d values ciphered", stats.Tables, stats.Rows, stats.Values)
	return stats, nil
}

// Open opens a SQLite database file.
func Open(path string) (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func setFKMode(ctx context.Context, db *sql.DB, mode string) error {
	mode = strings.ToLower(mode)
	switch mode {
	case "on", "off":
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA foreign_keys = %s", strings.ToUpper(mode))); err != nil {
			return fmt.Errorf("set foreign_keys: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid fk mode: %s", mode)
	}
}

func included(cfg *config.Config, order []string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		if schema.Included(cfg.IncludeTables, cfg.ExcludeTables, name) {
			out = append(out, name)
		}
	}
	return out
}

// ColumnCiphers resolves the cipher of every ciphered column of tbl. Columns
// named in the config must exist. With allText, text columns the config does
// not mention get base.
func ColumnCiphers(cfg *config.Config, tbl *schema.Table, base *caesar.Cipher, allText bool) (map[string]*caesar.Cipher, error) {
	out := map[string]*caesar.Cipher{}
	if allText {
		if base == nil {
			return nil, fmt.Errorf("all-text mode needs a default cipher")
		}
		for _, col := range tbl.TextColumns() {
			out[col] = base
		}
	}
	if cfg == nil || cfg.Tables[tbl.Name] == nil {
		return out, nil
	}
	for col, cc := range cfg.Tables[tbl.Name].Columns {
		c, ok := tbl.Column(col)
		if !ok {
			return nil, fmt.Errorf("table %s has no column %s", tbl.Name, col)
		}
		if cc == nil {
			cc = &config.CipherConfig{}
		}
		cipher, err := caesar.Build(cc, base)
		if err != nil {
			return nil, fmt.Errorf("cipher %s.%s: %w", tbl.Name, col, err)
		}
		out[c.Name] = cipher
	}
	return out, nil
}

// SortedColumns returns the keys of a column cipher map in sorted order.
func SortedColumns(ciphers map[string]*caesar.Cipher) []string {
	cols := make([]string, 0, len(ciphers))
	for c := range ciphers {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func createTables(ctx context.Context, outDB *sql.DB, s *schema.Schema, order []string) error {
	tx, err := outDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()
	for _, name := range order {
		if _, err := tx.ExecContext(ctx, s.Tables[name].SQL); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// createPostData recreates indexes of copied tables and views. A view that
// depends on a table left out of the copy is skipped with a warning.
func createPostData(ctx context.Context, outDB *sql.DB, s *schema.Schema, order []string, logger *log.Logger) error {
	copied := map[string]bool{}
	for _, name := range order {
		copied[name] = true
	}
	for _, idx := range s.Indexes {
		if !copied[idx.Table] {
			continue
		}
		if _, err := outDB.ExecContext(ctx, idx.SQL); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	for _, v := range s.Views {
		if _, err := outDB.ExecContext(ctx, v.SQL); err != nil {
			logger.Warnf("skip view %s: %v", v.Name, err)
		}
	}
	return nil
}

func copyTable(ctx context.Context, inDB, outDB *sql.DB, tbl *schema.Table, ciphers map[string]*caesar.Cipher, opts Options) (int64, int64, error) {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		cols = append(cols, schema.QuoteIdent(c.Name))
	}
	// position -> cipher, so workers never touch the map
	colCiphers := make([]*caesar.Cipher, len(tbl.Columns))
	for i, c := range tbl.Columns {
		colCiphers[i] = ciphers[c.Name]
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(cols, ", "), schema.QuoteIdent(tbl.Name), orderBy(tbl))
	rows, err := inDB.QueryContext(ctx, query)
	if err != nil {
		return 0, 0, fmt.Errorf("select %s: %w", tbl.Name, err)
	}
	defer rows.Close()

	tx, err := outDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin copy %s: %w", tbl.Name, err)
	}
	defer tx.Rollback()
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", schema.QuoteIdent(tbl.Name), strings.Join(cols, ", "), placeholders(len(cols)))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare insert %s: %w", tbl.Name, err)
	}
	defer stmt.Close()

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	var total, ciphered int64
	batch := make([][]any, 0, batchSize)
	flush := func() error {
		n, err := cipherBatch(ctx, batch, colCiphers, opts.Jobs)
		if err != nil {
			return fmt.Errorf("cipher %s: %w", tbl.Name, err)
		}
		for _, values := range batch {
			if _, err := stmt.ExecContext(ctx, values...); err != nil {
				return fmt.Errorf("insert %s: %w", tbl.Name, err)
			}
		}
		total += int64(len(batch))
		ciphered += n
		batch = batch[:0]
		return nil
	}
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return 0, 0, fmt.Errorf("scan row %s: %w", tbl.Name, err)
		}
		batch = append(batch, values)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return 0, 0, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate %s: %w", tbl.Name, err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return 0, 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit %s: %w", tbl.Name, err)
	}
	opts.Logger.Debugf("table %s: %d rows, %d values ciphered", tbl.Name, total, ciphered)
	return total, ciphered, nil
}

// cipherBatch rewrites the ciphered columns of every row in place, spreading
// rows over up to jobs goroutines. Only string values are ciphered.
func cipherBatch(ctx context.Context, batch [][]any, colCiphers []*caesar.Cipher, jobs int) (int64, error) {
	if jobs < 1 {
		jobs = 1
	}
	counts := make([]int64, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := batch[i]
			for col, c := range colCiphers {
				if c == nil {
					continue
				}
				if v, ok := row[col].(string); ok {
					row[col] = c.Apply(v)
					counts[i]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var n int64
	for _, c := range counts {
		n += c
	}
	return n, nil
}

func orderBy(tbl *schema.Table) string {
	if len(tbl.PrimaryKeys) > 0 {
		keys := make([]string, 0, len(tbl.PrimaryKeys))
		for _, k := range tbl.PrimaryKeys {
			keys = append(keys, schema.QuoteIdent(k))
		}
		return "ORDER BY " + strings.Join(keys, ", ")
	}
	if !tbl.WithoutRowID {
		return "ORDER BY rowid"
	}
	return ""
}

func placeholders(n int) string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = "?"
	}
	return strings.Join(vals, ", ")
}
