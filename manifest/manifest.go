// Package manifest handles pl0vm.toml runner configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Color mode values for Output.Color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Manifest represents a pl0vm.toml runner configuration. All settings are
// optional; command-line flags override anything set here.
type Manifest struct {
	Trace   Trace   `toml:"trace"`
	Profile Profile `toml:"profile"`
	Output  Output  `toml:"output"`

	// Dir is the directory containing the pl0vm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Trace configures instruction tracing during execution.
type Trace struct {
	Enabled   bool `toml:"enabled"`
	Verbosity int  `toml:"verbosity"`
}

// Profile configures the opcode-count profile store.
type Profile struct {
	Enabled  bool   `toml:"enabled"`
	Database string `toml:"database"`
}

// Output configures the terminal rendering of diagnostics.
type Output struct {
	Color string `toml:"color"`
}

// Default returns the configuration used when no pl0vm.toml exists.
func Default() *Manifest {
	return &Manifest{
		Trace:   Trace{Verbosity: 1},
		Profile: Profile{Database: "pl0vm-profile.db"},
		Output:  Output{Color: ColorAuto},
	}
}

// Load parses a pl0vm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "pl0vm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	switch m.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return nil, fmt.Errorf("invalid output.color %q in %s", m.Output.Color, path)
	}
	return m, nil
}

// LoadOrDefault loads the manifest next to the program file when one exists
// and falls back to defaults otherwise. A malformed file is still an error;
// only absence is forgiven.
func LoadOrDefault(dir string) (*Manifest, error) {
	if _, err := os.Stat(filepath.Join(dir, "pl0vm.toml")); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(dir)
}

// DatabasePath returns the profile database path resolved against the
// manifest directory.
func (m *Manifest) DatabasePath() string {
	if filepath.IsAbs(m.Profile.Database) || m.Dir == "" {
		return m.Profile.Database
	}
	return filepath.Join(m.Dir, m.Profile.Database)
}
