// Package target describes the compilation target a Backend emits for:
// pointer width, byte order and architecture triple, loaded from an
// optional YAML configuration file.
//
// Grounded on the go.mod dependency on gopkg.in/yaml.v3, previously
// unused (the original CLI hard-codes its C ABI assumptions); wired
// here as the natural place for a back-end to take
// build configuration, the same role a target-triple/config file plays
// in any cross-compiling toolchain.
package target

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lowlangc/lowlangc/internal/backend"
)

// Config is the on-disk description of a compilation target.
type Config struct {
	// PointerSize is the target's pointer width in bytes (4 or 8).
	PointerSize uint64 `yaml:"pointer_size"`
	// Endianness is "little" or "big".
	Endianness string `yaml:"endianness"`
	// Arch is an informational architecture triple (e.g.
	// "x86_64-unknown-linux-gnu"); it is not consulted by any package
	// in this repo, since instruction selection is delegated to the
	// backend assembler, but it is threaded through so a future native
	// emitter can pick an instruction set from it.
	Arch string `yaml:"arch"`
}

// Default returns the built-in target used when no config file is
// given: 8-byte pointers, little-endian, a generic 64-bit triple.
func Default() Config {
	return Config{PointerSize: 8, Endianness: "little", Arch: "x86_64-unknown-linux-gnu"}
}

// Load reads and parses a target configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("target: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("target: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Endian resolves the Endianness field into a backend.Endianness,
// defaulting to little-endian for an empty or unrecognized value.
func (c Config) Endian() backend.Endianness {
	if c.Endianness == "big" {
		return backend.BigEndian
	}
	return backend.LittleEndian
}

// Validate reports whether c describes a usable target.
func (c Config) Validate() error {
	if c.PointerSize != 4 && c.PointerSize != 8 {
		return fmt.Errorf("target: unsupported pointer_size %d (must be 4 or 8)", c.PointerSize)
	}
	if c.Endianness != "little" && c.Endianness != "big" {
		return fmt.Errorf("target: unsupported endianness %q (must be \"little\" or \"big\")", c.Endianness)
	}
	return nil
}
