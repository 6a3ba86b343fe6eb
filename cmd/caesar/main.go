package main

import (
	"fmt"
	"os"

	"github.com/dyne/caesar/internal/caesar"
	"github.com/dyne/caesar/internal/config"
	"github.com/dyne/caesar/internal/dbcopy"
	"github.com/dyne/caesar/internal/inspect"
	"github.com/dyne/caesar/internal/log"
	"github.com/dyne/caesar/internal/plan"
	"github.com/dyne/caesar/internal/selftest"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	Verbose bool
	Config  string
	Lang    string
	Shift   int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootOpts := &globalOptions{}
	var encrypt, decrypt, output string
	root := &cobra.Command{
		Use:           "caesar",
		Short:         "Caesar cipher over the Spanish alphabet (with Ñ, accents and ligatures)",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return err
			}
			text, mode := encrypt, caesar.ModeEncrypt
			if cmd.Flags().Changed("decrypt") {
				text, mode = decrypt, caesar.ModeDecrypt
			}
			c, err := defaultCipher(cmd, rootOpts, cfg, mode)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, rootOpts)
			logger.Debugf("%s: %d runes", c, len([]rune(text)))
			res := c.Apply(text)
			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), res)
				return nil
			}
			if err := os.WriteFile(output, []byte(res), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved to", output)
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&rootOpts.Verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().StringVar(&rootOpts.Config, "config", "", "configuration file")
	root.PersistentFlags().StringVar(&rootOpts.Lang, "lang", "", "alphabet (es|en, default es)")
	root.PersistentFlags().IntVarP(&rootOpts.Shift, "shift", "s", caesar.DefaultShift, "shift amount")

	root.Flags().StringVarP(&encrypt, "encrypt", "e", "", "text to encrypt")
	root.Flags().StringVarP(&decrypt, "decrypt", "d", "", "text to decrypt")
	root.Flags().StringVarP(&output, "output", "o", "", "save result to file")
	root.MarkFlagsMutuallyExclusive("encrypt", "decrypt")
	root.MarkFlagsOneRequired("encrypt", "decrypt")

	root.AddCommand(selftestCmd(rootOpts))
	root.AddCommand(copyCmd(rootOpts))
	root.AddCommand(planCmd(rootOpts))
	root.AddCommand(inspectCmd(rootOpts))
	return root
}

func newLogger(cmd *cobra.Command, rootOpts *globalOptions) *log.Logger {
	return log.New(log.Verbose(rootOpts.Verbose), cmd.ErrOrStderr())
}

// defaultCipher resolves shift and alphabet: flags win over the config file,
// which wins over the built-in defaults.
func defaultCipher(cmd *cobra.Command, rootOpts *globalOptions, cfg *config.Config, mode caesar.Mode) (*caesar.Cipher, error) {
	shift := rootOpts.Shift
	if !cmd.Flags().Changed("shift") && cfg.Shift != nil {
		shift = *cfg.Shift
	}
	lang := rootOpts.Lang
	if lang == "" {
		lang = cfg.Lang
	}
	return caesar.New(lang, shift, mode)
}

func selftestCmd(rootOpts *globalOptions) *cobra.Command {
	var testsPath string
	var repeat, limit int
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Encrypt and decrypt every case of a test file and check the round trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := selftest.Load(testsPath)
			if err != nil {
				return err
			}
			rep, err := selftest.Run(cmd.Context(), suite, selftest.Options{
				Repeat: repeat,
				Limit:  limit,
				Out:    cmd.OutOrStdout(),
				Logger: newLogger(cmd, rootOpts),
			})
			if err != nil {
				return err
			}
			if rep.Failures > 0 {
				cmd.SilenceUsage = true
				return fmt.Errorf("%d of %d cases failed", rep.Failures, rep.Ran)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&testsPath, "tests", "test.json", "test cases file (JSON or YAML)")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "replay the cases this many times")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many cases (0: no limit)")
	return cmd
}

type dbFlags struct {
	inPath  string
	mode    string
	allText bool
}

func (f *dbFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inPath, "in", "", "input SQLite file")
	cmd.Flags().StringVar(&f.mode, "mode", "encrypt", "default direction (encrypt|decrypt)")
	cmd.Flags().BoolVar(&f.allText, "all-text", false, "cipher every text column")
	_ = cmd.MarkFlagRequired("in")
}

func (f *dbFlags) resolve(cmd *cobra.Command, rootOpts *globalOptions) (*config.Config, *caesar.Cipher, error) {
	cfg, err := config.Load(rootOpts.Config)
	if err != nil {
		return nil, nil, err
	}
	mode, err := caesar.ParseMode(f.mode)
	if err != nil {
		return nil, nil, err
	}
	c, err := defaultCipher(cmd, rootOpts, cfg, mode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

func copyCmd(rootOpts *globalOptions) *cobra.Command {
	var flags dbFlags
	var outPath, fkMode string
	var jobs, batch int
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy a SQLite database ciphering configured text columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := flags.resolve(cmd, rootOpts)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			stats, err := dbcopy.Run(cmd.Context(), dbcopy.Options{
				InPath:    flags.inPath,
				OutPath:   outPath,
				Config:    cfg,
				Default:   c,
				AllText:   flags.allText,
				FKMode:    fkMode,
				Jobs:      jobs,
				BatchSize: batch,
				Logger:    newLogger(cmd, rootOpts),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s (%d tables, %d rows, %d values ciphered)\n", outPath, stats.Tables, stats.Rows, stats.Values)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "output SQLite file")
	cmd.Flags().StringVar(&fkMode, "fk", "on", "foreign key enforcement (on|off)")
	cmd.Flags().IntVar(&jobs, "jobs", 4, "parallelism")
	cmd.Flags().IntVar(&batch, "batch", 256, "rows ciphered per batch")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func planCmd(rootOpts *globalOptions) *cobra.Command {
	var flags dbFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which columns a copy would cipher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := flags.resolve(cmd, rootOpts)
			if err != nil {
				return err
			}
			return plan.Run(cmd.Context(), plan.Options{
				InPath:  flags.inPath,
				Config:  cfg,
				Default: c,
				AllText: flags.allText,
				Out:     cmd.OutOrStdout(),
				Logger:  newLogger(cmd, rootOpts),
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func inspectCmd(rootOpts *globalOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List tables, row counts and text columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect.Run(cmd.Context(), inPath, cmd.OutOrStdout(), newLogger(cmd, rootOpts))
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input SQLite file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
