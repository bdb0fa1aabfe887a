// Package config implements the compiler's configuration options as an
// explicit Config value, assembled from defaults, an optional YAML
// file, and environment variable overrides — the same three-layer
// precedence (defaults → file → env) grafana-k6's own config loader
// uses.
//
// Config is passed explicitly through every stage rather than read
// from a package variable, so multiple compiles can run concurrently
// in one process without stepping on each other's settings.
package config

import (
	"os"

	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"
)

// ValueType selects the primary scalar of the module.
type ValueType string

const (
	ValueTypeF64 ValueType = "f64"
	ValueTypeI32 ValueType = "i32"
)

// Config holds every user-tunable compilation option.
type Config struct {
	// ValueType is "f64" (default) or "i32": the primary scalar of the
	// module.
	ValueType ValueType `yaml:"valueType" envconfig:"VALUE_TYPE"`
	// PageSize is the linear-memory page granularity for internal
	// allocators, in bytes. The Wasm spec itself fixes the page size at
	// 64 KiB; this option governs how the compiler's own bump allocator
	// carves pages, not the binary format's page unit.
	PageSize int `yaml:"pageSize" envconfig:"PAGE_SIZE"`
	// Closures enables the semantic analyzer (default true). With it
	// off, no binding is renamed or promoted to a heap cell: every
	// variable is a plain local keyed by its source name, no reference is
	// lowered as a global access, and closures over local state are
	// unsupported.
	Closures bool `yaml:"closures" envconfig:"CLOSURES"`
	// OptPasses is the peephole optimizer's iteration count (>= 0).
	OptPasses int `yaml:"optPasses" envconfig:"OPT_PASSES"`
	// TailCall enables the `return_call` rewrite; requires host
	// tail-call support.
	TailCall bool `yaml:"tailCall" envconfig:"TAIL_CALL"`
}

// Default returns the baseline defaults: value-type=f64, closures=on,
// opt-passes=2.
func Default() Config {
	return Config{
		ValueType: ValueTypeF64,
		PageSize:  65536,
		Closures:  true,
		OptPasses: 2,
		TailCall:  false,
	}
}

// Load assembles a Config from defaults, an optional YAML file at path
// (skipped if path is empty or the file does not exist), and "WASMC_"-
// prefixed environment variable overrides, in that precedence order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := envconfig.Process("WASMC", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
