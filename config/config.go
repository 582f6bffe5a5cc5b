// Package config holds the pipeline.yaml configuration types.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration, or def when unset.
func (d Duration) Std(def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return time.Duration(d)
}

// Config represents the top-level pipeline.yaml configuration.
type Config struct {
	Target    TargetRef  `yaml:"target"`
	OutputDir string     `yaml:"output_dir,omitempty"`
	Build     BuildRef   `yaml:"build"`
	Profile   ProfileRef `yaml:"profile,omitempty"`
	Convert   ConvertRef `yaml:"convert,omitempty"`
	Layout    LayoutRef  `yaml:"layout,omitempty"`
	Verify    VerifyRef  `yaml:"verify,omitempty"`
}

// TargetRef identifies the binary the pipeline optimizes.
type TargetRef struct {
	Name    string `yaml:"name"`
	WorkDir string `yaml:"workdir,omitempty"`
}

// BuildRef configures the compiler/linker invocations for both builds.
type BuildRef struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	// LTOArgs are appended to both builds (link-time-optimization mode).
	LTOArgs []string `yaml:"lto_args,omitempty"`
	// ProfileArgs are appended to the optimized build when a converted
	// profile exists; {profile} expands to its path.
	ProfileArgs []string          `yaml:"profile_args,omitempty"`
	Binary      string            `yaml:"binary"` // path the build writes, relative to workdir
	Env         map[string]string `yaml:"env,omitempty"`
	Timeout     Duration          `yaml:"timeout,omitempty"`
}

// ProfileRef configures the sampling-profiler collection stage.
type ProfileRef struct {
	Enabled *bool    `yaml:"enabled,omitempty"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"` // {binary}, {duration}, {output}
	// Duration is the observation window passed to the sampler.
	Duration       Duration `yaml:"duration,omitempty"`
	Timeout        Duration `yaml:"timeout,omitempty"`
	RetryOnTimeout bool     `yaml:"retry_on_timeout,omitempty"`
}

// ConvertRef configures the raw-profile-to-compiler-format converter.
type ConvertRef struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"` // {raw_profile}, {binary}, {output}
	Timeout Duration `yaml:"timeout,omitempty"`
}

// LayoutRef configures the post-link layout optimization pass.
type LayoutRef struct {
	Enabled *bool    `yaml:"enabled,omitempty"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"` // extra args; {binary}, {output}, {profile}
	// Layout option set, mapped to tool flags by the layout stage.
	BlockReorder    string   `yaml:"block_reorder,omitempty"`    // e.g. ext-tsp
	FunctionReorder string   `yaml:"function_reorder,omitempty"` // e.g. hfsort+
	SplitFunctions  bool     `yaml:"split_functions,omitempty"`
	ICF             string   `yaml:"icf,omitempty"` // none, safe, all
	Timeout         Duration `yaml:"timeout,omitempty"`
}

// VerifyRef configures the smoke checks run by the verification gate.
type VerifyRef struct {
	// StartupArgs are passed to the binary itself for the startup check.
	StartupArgs []string `yaml:"startup_args,omitempty"` // default: --version
	Harness     string   `yaml:"harness,omitempty"`
	HarnessArgs []string `yaml:"harness_args,omitempty"` // {binary}
	Timeout     Duration `yaml:"timeout,omitempty"`
}

// IsEnabled reports whether profile collection is switched on (default on).
func (p ProfileRef) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// IsEnabled reports whether the layout pass is switched on (default on).
func (l LayoutRef) IsEnabled() bool { return l.Enabled == nil || *l.Enabled }

// Load reads and parses a pipeline.yaml file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a Config and checks required fields.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing pipeline config: %w", err)
	}

	if cfg.Target.Name == "" {
		return nil, fmt.Errorf("pipeline config: target.name is required")
	}
	if cfg.Build.Command == "" {
		return nil, fmt.Errorf("pipeline config: build.command is required")
	}
	if cfg.Build.Binary == "" {
		return nil, fmt.Errorf("pipeline config: build.binary is required")
	}

	return &cfg, nil
}
