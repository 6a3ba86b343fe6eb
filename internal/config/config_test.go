package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shift != nil || len(cfg.Tables) != 0 {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caesar.yaml")
	data := `shift: 5
lang: en
exclude_tables: ["tmp_*"]
tables:
  users:
    columns:
      full_name: {mode: encrypt, shift: 7, lang: es}
      notes: {}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Shift == nil || *cfg.Shift != 5 || cfg.Lang != "en" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	cols := cfg.Tables["users"].Columns
	if cols["full_name"].Shift == nil || *cols["full_name"].Shift != 7 || cols["full_name"].Lang != "es" {
		t.Fatalf("unexpected column config: %+v", cols["full_name"])
	}
	if cols["notes"] == nil || cols["notes"].Shift != nil {
		t.Fatalf("unexpected notes config: %+v", cols["notes"])
	}
	if got := cfg.TableNames(); len(got) != 1 || got[0] != "users" {
		t.Fatalf("table names: %v", got)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "tables:\n  users:\n    columns:\n      email: {mode: scramble}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestLoadRejectsUnknownLang(t *testing.T) {
	cases := map[string]string{
		"top-level": "lang: fr\n",
		"column":    "tables:\n  users:\n    columns:\n      email: {lang: klingon}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), "unknown alphabet") {
				t.Fatalf("expected unknown alphabet error, got %v", err)
			}
		})
	}
	cfg := &Config{Lang: " EN "}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("case and spaces should be ignored: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}
