// Package selftest replays a file of cipher cases: each input is encrypted,
// decrypted again and compared with its normalized form.
package selftest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dyne/caesar/internal/caesar"
	"github.com/dyne/caesar/internal/log"
	"gopkg.in/yaml.v3"
)

// Case is one entry of a cases file. Shift defaults to 1 and Lang to es.
// Normalized overrides the expected decryption.
type Case struct {
	Input      string  `yaml:"input"`
	Shift      *int    `yaml:"shift"`
	Lang       string  `yaml:"lang"`
	Normalized *string `yaml:"normalized"`
}

type Suite struct {
	Tests []Case `yaml:"tests"`
}

// Load reads a cases file. JSON files parse as YAML.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	s := &Suite{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse cases %s: %w", path, err)
	}
	return s, nil
}

type Options struct {
	// Repeat replays the whole suite this many times. Zero means once.
	Repeat int
	// Limit caps the number of cases run across all repeats. Zero means no cap.
	Limit  int
	Out    io.Writer
	Logger *log.Logger
}

type Result struct {
	Index     int
	Input     string
	Encrypted string
	Decrypted string
	Expected  string
	OK        bool
}

type Report struct {
	Ran      int
	Failures int
	Elapsed  time.Duration
	// Results holds the first pass over the suite.
	Results []Result
}

func Run(ctx context.Context, suite *Suite, opts Options) (*Report, error) {
	if suite == nil {
		suite = &Suite{}
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	repeat := opts.Repeat
	if repeat < 1 {
		repeat = 1
	}
	total := repeat * len(suite.Tests)
	if opts.Limit > 0 && opts.Limit < total {
		total = opts.Limit
	}
	rep := &Report{}
	start := time.Now()
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		c := suite.Tests[i%len(suite.Tests)]
		res, err := runCase(i, c)
		if err != nil {
			return rep, fmt.Errorf("case %d: %w", i, err)
		}
		rep.Ran++
		if !res.OK {
			rep.Failures++
		}
		if i < len(suite.Tests) {
			rep.Results = append(rep.Results, res)
			fmt.Fprintf(out, "%d: ok=%t input=%q enc=%q dec=%q\n", res.Index, res.OK, res.Input, res.Encrypted, res.Decrypted)
			if !res.OK {
				opts.Logger.Warnf("case %d: expected %q, got %q", res.Index, res.Expected, res.Decrypted)
			}
		}
	}
	rep.Elapsed = time.Since(start)
	fmt.Fprintf(out, "ran %d tests in %s, failures: %d\n", rep.Ran, rep.Elapsed, rep.Failures)
	opts.Logger.Debugf("selftest: %d cases, %d repeats, %d ops", len(suite.Tests), repeat, rep.Ran)
	return rep, nil
}

func runCase(i int, c Case) (Result, error) {
	shift := 1
	if c.Shift != nil {
		shift = *c.Shift
	}
	cipher, err := caesar.New(c.Lang, shift, caesar.ModeEncrypt)
	if err != nil {
		return Result{}, err
	}
	expected := caesar.Normalize(c.Input)
	if c.Normalized != nil {
		expected = *c.Normalized
	}
	enc := cipher.Encrypt(c.Input)
	dec := cipher.Decrypt(enc)
	return Result{
		Index:     i,
		Input:     c.Input,
		Encrypted: enc,
		Decrypted: dec,
		Expected:  expected,
		OK:        dec == expected,
	}, nil
}
