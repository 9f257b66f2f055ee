package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration cannot be used for analysis.
var ErrInvalid = errors.New("invalid config")

const (
	// DefaultBase is the start of the flash window programs are linked for.
	DefaultBase = 0x08000000
	// DefaultSize is the size of the memory image.
	DefaultSize = 10 * 1024 * 1024
	// DefaultWidth is the maximum number of instructions in a cycle.
	DefaultWidth = 8
)

// Config defines the parameters of a single analysis run.
type Config struct {
	// Base is the address of the first byte of the memory image.
	Base uint32 `yaml:"base"`
	// Size is the number of bytes in the memory image.
	Size uint32 `yaml:"size"`
	// Width is the maximum number of instructions scheduled into one cycle.
	Width int `yaml:"width"`
	// Exhaustive tries every aligned address as a block start instead of
	// following successors from the image start.
	Exhaustive bool `yaml:"exhaustive"`
	// Entry additionally seeds discovery with the ELF entry point.
	Entry bool `yaml:"entry"`
	// Workers bounds the number of goroutines, 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Base:  DefaultBase,
		Size:  DefaultSize,
		Width: DefaultWidth,
	}
}

// Load reads a YAML configuration file. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks whether the configuration describes a usable analysis.
func (cfg Config) Validate() error {
	switch {
	case cfg.Size == 0:
		return fmt.Errorf("%w: image size must be positive", ErrInvalid)
	case cfg.Size%4 != 0:
		return fmt.Errorf("%w: image size %#x is not word aligned", ErrInvalid, cfg.Size)
	case cfg.Base == 0:
		// address zero terminates cycles in the ILP file
		return fmt.Errorf("%w: image window must not contain address 0", ErrInvalid)
	case cfg.Base%4 != 0:
		return fmt.Errorf("%w: image base %#08x is not word aligned", ErrInvalid, cfg.Base)
	case uint64(cfg.Base)+uint64(cfg.Size) > math.MaxUint32:
		return fmt.Errorf("%w: image window %#08x+%#x overflows the address space", ErrInvalid, cfg.Base, cfg.Size)
	case cfg.Width < 1:
		return fmt.Errorf("%w: cycle width %d must be at least 1", ErrInvalid, cfg.Width)
	case cfg.Workers < 0:
		return fmt.Errorf("%w: negative worker count %d", ErrInvalid, cfg.Workers)
	}
	return nil
}

// Parallelism returns the number of goroutines to use for analysis.
func (cfg Config) Parallelism() int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
