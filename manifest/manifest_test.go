package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeToml(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "pl0vm.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing pl0vm.toml: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeToml(t, dir, `
[trace]
enabled = true
verbosity = 2

[profile]
enabled = true
database = "runs.db"

[output]
color = "never"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Trace.Enabled || m.Trace.Verbosity != 2 {
		t.Errorf("Trace = %+v, want enabled with verbosity 2", m.Trace)
	}
	if !m.Profile.Enabled || m.Profile.Database != "runs.db" {
		t.Errorf("Profile = %+v", m.Profile)
	}
	if m.Output.Color != ColorNever {
		t.Errorf("Output.Color = %q, want never", m.Output.Color)
	}
	if m.Dir == "" {
		t.Error("Dir should be set at load time")
	}
}

func TestLoadKeepsDefaultsForMissingSections(t *testing.T) {
	dir := t.TempDir()
	writeToml(t, dir, `
[trace]
enabled = true
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Trace.Verbosity != 1 {
		t.Errorf("Trace.Verbosity = %d, want default 1", m.Trace.Verbosity)
	}
	if m.Output.Color != ColorAuto {
		t.Errorf("Output.Color = %q, want default auto", m.Output.Color)
	}
	if m.Profile.Database != "pl0vm-profile.db" {
		t.Errorf("Profile.Database = %q, want default", m.Profile.Database)
	}
}

func TestLoadRejectsBadColor(t *testing.T) {
	dir := t.TempDir()
	writeToml(t, dir, `
[output]
color = "sometimes"
`)

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "output.color") {
		t.Errorf("error = %v, want invalid output.color", err)
	}
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	m, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if m.Trace.Enabled || m.Profile.Enabled {
		t.Errorf("defaults should not enable anything: %+v", m)
	}
}

func TestLoadOrDefaultStillRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeToml(t, dir, "not [valid toml")
	if _, err := LoadOrDefault(dir); err == nil {
		t.Error("malformed pl0vm.toml should be an error, not a silent default")
	}
}

func TestDatabasePathResolvesAgainstDir(t *testing.T) {
	dir := t.TempDir()
	writeToml(t, dir, `
[profile]
database = "runs.db"
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.DatabasePath(); !filepath.IsAbs(got) || filepath.Base(got) != "runs.db" {
		t.Errorf("DatabasePath = %q, want absolute path ending in runs.db", got)
	}
}
