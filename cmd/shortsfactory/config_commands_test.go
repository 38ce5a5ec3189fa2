package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.DataDir)
	requireContains(t, out, "[WARN] Metricool credentials missing")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("expected the sample config to validate: %v", err)
	}
}

func TestConfigValidateJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate --json: %v", err)
	}
	var report configReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Path != env.configPath || !report.FileExists {
		t.Fatalf("unexpected file fields %+v", report)
	}
	if report.DataDir != env.cfg.Paths.DataDir || report.MaxDaily != 4 || report.Publishing {
		t.Fatalf("unexpected summary %+v", report)
	}
}

func TestConfigLinesFlagMissingFile(t *testing.T) {
	lines := configLines(configReport{Path: "/tmp/none.toml", Publishing: true}, false)
	joined := strings.Join(lines, "\n")
	requireContains(t, joined, "[WARN] /tmp/none.toml (missing, defaults used)")
	requireContains(t, joined, "[OK] Metricool credentials set")
}
