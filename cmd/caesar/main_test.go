package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyne/caesar/internal/dbcopy"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEncryptDecrypt(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"--encrypt", "Hola, Mundo"}, "Krñd, Oxpgr\n"},
		{[]string{"-d", "Krñd", "-s", "3"}, "Hola\n"},
		{[]string{"-e", "Ñ", "--shift", "1"}, "O\n"},
		{[]string{"-e", "straße", "--shift=0"}, "strasse\n"},
		{[]string{"-e", "a", "--shift=-1"}, "z\n"},
		{[]string{"-e", "ñ", "--lang", "en"}, "ñ\n"},
		{[]string{"-e", "", "-s", "5"}, "\n"},
	}
	for _, c := range cases {
		t.Run(strings.Join(c.args, " "), func(t *testing.T) {
			out, err := execute(t, c.args...)
			if err != nil {
				t.Fatal(err)
			}
			if out != c.want {
				t.Fatalf("got %q want %q", out, c.want)
			}
		})
	}
}

func TestFlagGroups(t *testing.T) {
	if _, err := execute(t, "--shift", "2"); err == nil {
		t.Fatal("expected error when neither --encrypt nor --decrypt is set")
	}
	if _, err := execute(t, "-e", "a", "-d", "b"); err == nil {
		t.Fatal("expected error when both --encrypt and --decrypt are set")
	}
	if _, err := execute(t, "-e", "a", "--lang", "xx"); err == nil {
		t.Fatal("expected error for unknown alphabet")
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	out, err := execute(t, "-e", "Canción", "-o", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Saved to "+path+"\n" {
		t.Fatalf("unexpected confirmation %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Fdpflrp" {
		t.Fatalf("file contents %q", data)
	}

	_, err = execute(t, "-e", "x", "-o", filepath.Join(t.TempDir(), "missing", "out.txt"))
	if err == nil || !strings.Contains(err.Error(), "write output") {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caesar.yaml")
	if err := os.WriteFile(path, []byte("shift: 1\nlang: en\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", path, "-e", "Zn")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Ao\n" {
		t.Fatalf("got %q", out)
	}
	// flags win over the file
	out, err = execute(t, "--config", path, "-e", "Zn", "-s", "2", "--lang", "es")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Bo\n" {
		t.Fatalf("got %q", out)
	}
}

func TestSelftestCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"tests": [{"input": "Pingüino", "shift": 4}, {"input": "Æon", "lang": "en"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "selftest", "--tests", good)
	if err != nil {
		t.Fatalf("selftest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "ran 2 tests") || !strings.Contains(out, "failures: 0") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("tests:\n  - input: Pingüino\n    normalized: Pingüino\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "selftest", "--tests", bad); err == nil || !strings.Contains(err.Error(), "1 of 1 cases failed") {
		t.Fatalf("expected failure, got %v", err)
	}
}

func TestDatabaseCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.sqlite")
	db, err := dbcopy.Open(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`,
		`INSERT INTO notes (body) VALUES ('Mañana')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	out, err := execute(t, "inspect", "--in", in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "- notes (1 rows)") {
		t.Fatalf("inspect output:\n%s", out)
	}

	out, err = execute(t, "plan", "--in", in, "--all-text", "-s", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "  - body: encrypt shift=2 lang=es") {
		t.Fatalf("plan output:\n%s", out)
	}

	outPath := filepath.Join(dir, "out.sqlite")
	if _, err := execute(t, "copy", "--in", in, "--out", outPath, "--all-text", "-s", "2"); err != nil {
		t.Fatal(err)
	}
	outDB, err := dbcopy.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer outDB.Close()
	var body string
	if err := outDB.QueryRow(`SELECT body FROM notes`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	if body != "Ñcpcoc" {
		t.Fatalf("body %q", body)
	}

	if _, err := execute(t, "copy", "--in", in, "--out", outPath, "--mode", "sideways"); err == nil {
		t.Fatal("expected invalid mode error")
	}
}
