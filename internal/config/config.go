// Package config holds the generator configuration loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/ecsgen/internal/core/observability/log"
	"github.com/zeusync/ecsgen/pkg/ecs"
)

// DefaultRuntime is the import path generated code uses for the runtime package.
const DefaultRuntime = "github.com/zeusync/ecsgen/pkg/ecs"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Logging
	Log LogConfig `yaml:"log"`

	// Code generation
	Generator GeneratorConfig `yaml:"generator"`

	// Defaults applied to system states built by NewSystemState
	Runtime RuntimeConfig `yaml:"runtime"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error, silent
}

type GeneratorConfig struct {
	// Parallelism bounds the sites processed at once. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
	// Runtime is the import path of the runtime package. A declaration file
	// naming its own runtime wins.
	Runtime string `yaml:"runtime"`
	// Package overrides the package clause of the generated file.
	Package string `yaml:"package"`
	// Cache keeps the fragments of unchanged sites between runs of one process.
	Cache bool `yaml:"cache"`
}

type RuntimeConfig struct {
	SafetyChecks        bool `yaml:"safety_checks"`
	SparseEdgeThreshold int  `yaml:"sparse_edge_threshold"`
	Workers             int  `yaml:"workers"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Generator: GeneratorConfig{
			Runtime: DefaultRuntime,
			Cache:   true,
		},
		Runtime: RuntimeConfig{
			SafetyChecks:        true,
			SparseEdgeThreshold: 4,
		},
	}
}

// Load decodes r over the defaults and validates the result. An empty document
// yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	fh, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	cfg, err := Load(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Generator.Parallelism < 0 {
		return fmt.Errorf("%w: generator.parallelism must not be negative", ErrInvalidConfig)
	}
	if c.Generator.Runtime == "" {
		return fmt.Errorf("%w: generator.runtime is required", ErrInvalidConfig)
	}
	if p := c.Generator.Package; p != "" && !token.IsIdentifier(p) {
		return fmt.Errorf("%w: generator.package %q is not an identifier", ErrInvalidConfig, p)
	}
	if t := c.Runtime.SparseEdgeThreshold; t < 0 || t > ecs.ChunkCapacity {
		return fmt.Errorf("%w: runtime.sparse_edge_threshold %d out of [0, %d]", ErrInvalidConfig, t, ecs.ChunkCapacity)
	}
	if c.Runtime.Workers < 0 {
		return fmt.Errorf("%w: runtime.workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LogLevel is the parsed log level. Validate has already rejected bad values.
func (c *Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// NewSystemState returns a system state carrying the runtime defaults and installs
// the sparse edge threshold.
func (c *Config) NewSystemState(name string, types *ecs.TypeRegistry, queries ecs.QueryProvider, deps ecs.DependencyManager) *ecs.SystemState {
	ecs.SparseEdgeThreshold = c.Runtime.SparseEdgeThreshold
	s := ecs.NewSystemState(name, types, queries, deps)
	s.SafetyChecks = c.Runtime.SafetyChecks
	s.Workers = c.Runtime.Workers
	return s
}
