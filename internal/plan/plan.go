package plan

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dyne/caesar/internal/caesar"
	"github.com/dyne/caesar/internal/config"
	"github.com/dyne/caesar/internal/dbcopy"
	"github.com/dyne/caesar/internal/log"
	"github.com/dyne/caesar/internal/schema"
)

type Options struct {
	InPath  string
	Config  *config.Config
	Default *caesar.Cipher
	AllText bool
	Out     io.Writer
	Logger  *log.Logger
}

// Run prints, for every table a copy would include, the cipher each column
// would get.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	db, err := dbcopy.Open(opts.InPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer db.Close()

	s, err := schema.Load(ctx, db)
	if err != nil {
		return err
	}

	fmt.Fprintln(opts.Out, "Plan:")
	for _, name := range schema.TableOrder(s) {
		if !schema.Included(cfg.IncludeTables, cfg.ExcludeTables, name) {
			opts.Logger.Debugf("plan: table %s excluded", name)
			continue
		}
		ciphers, err := dbcopy.ColumnCiphers(cfg, s.Tables[name], opts.Default, opts.AllText)
		if err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "- %s\n", name)
		if len(ciphers) == 0 {
			fmt.Fprintln(opts.Out, "  (no ciphered columns)")
			continue
		}
		for _, col := range dbcopy.SortedColumns(ciphers) {
			fmt.Fprintf(opts.Out, "  - %s: %s\n", col, ciphers[col])
		}
	}
	opts.Logger.Infof("plan complete")
	return nil
}
