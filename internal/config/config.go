package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Shift         *int                    `yaml:"shift"`
	Lang          string                  `yaml:"lang"`
	IncludeTables []string                `yaml:"include_tables"`
	ExcludeTables []string                `yaml:"exclude_tables"`
	Tables        map[string]*TableConfig `yaml:"tables"`
}

type TableConfig struct {
	Columns map[string]*CipherConfig `yaml:"columns"`
}

// CipherConfig describes how one column is ciphered. Empty fields inherit the
// command-line defaults.
type CipherConfig struct {
	Mode  string `yaml:"mode"`
	Shift *int   `yaml:"shift"`
	Lang  string `yaml:"lang"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Langs names the built-in alphabets a config may select.
var Langs = []string{"en", "es"}

func knownLang(lang string) bool {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		return true
	}
	for _, l := range Langs {
		if l == key {
			return true
		}
	}
	return false
}

// Validate checks cipher modes and alphabet names.
func (c *Config) Validate() error {
	if !knownLang(c.Lang) {
		return fmt.Errorf("lang: unknown alphabet %q", c.Lang)
	}
	for _, table := range c.TableNames() {
		tbl := c.Tables[table]
		if tbl == nil {
			continue
		}
		for col, cc := range tbl.Columns {
			if cc == nil {
				continue
			}
			switch strings.ToLower(cc.Mode) {
			case "", "encrypt", "decrypt":
			default:
				return fmt.Errorf("tables.%s.columns.%s: unknown mode %q", table, col, cc.Mode)
			}
			if !knownLang(cc.Lang) {
				return fmt.Errorf("tables.%s.columns.%s: unknown alphabet %q", table, col, cc.Lang)
			}
		}
	}
	return nil
}

// TableNames returns the configured table names in sorted order.
func (c *Config) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
