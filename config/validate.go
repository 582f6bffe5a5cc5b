package config

import (
	"fmt"
	"regexp"
)

var (
	targetNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

	knownICFLevels = map[string]bool{"none": true, "safe": true, "all": true}

	knownBlockReorder    = map[string]bool{"none": true, "reverse": true, "ext-tsp": true, "cache": true}
	knownFunctionReorder = map[string]bool{"none": true, "exec-count": true, "hfsort": true, "hfsort+": true, "cdsort": true}
)

// ValidationResult holds errors and warnings from config validation.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validate checks a Config for errors and warnings beyond the required
// fields enforced by Parse.
func Validate(cfg *Config) *ValidationResult {
	r := &ValidationResult{}

	if cfg.Target.Name == "" {
		r.Errors = append(r.Errors, "target.name is required")
	} else if !targetNamePattern.MatchString(cfg.Target.Name) {
		r.Errors = append(r.Errors, fmt.Sprintf("target.name %q must match ^[a-z0-9-]+$", cfg.Target.Name))
	}

	if cfg.Build.Command == "" {
		r.Errors = append(r.Errors, "build.command is required")
	}
	if cfg.Build.Binary == "" {
		r.Errors = append(r.Errors, "build.binary is required")
	}
	if len(cfg.Build.LTOArgs) == 0 {
		r.Warnings = append(r.Warnings, "build.lto_args is empty; the initial build will not be link-time optimized")
	}

	if cfg.Profile.IsEnabled() {
		if cfg.Profile.Command == "" {
			r.Errors = append(r.Errors, "profile.command is required when profiling is enabled")
		}
		if cfg.Convert.Command == "" {
			r.Errors = append(r.Errors, "convert.command is required when profiling is enabled")
		}
		if len(cfg.Build.ProfileArgs) == 0 {
			r.Warnings = append(r.Warnings, "build.profile_args is empty; the optimized build cannot consume a profile")
		}
	}

	if cfg.Layout.IsEnabled() {
		if cfg.Layout.Command == "" {
			r.Errors = append(r.Errors, "layout.command is required when the layout pass is enabled")
		}
		if cfg.Layout.ICF != "" && !knownICFLevels[cfg.Layout.ICF] {
			r.Errors = append(r.Errors, fmt.Sprintf("layout.icf %q must be one of: none, safe, all", cfg.Layout.ICF))
		}
		if cfg.Layout.BlockReorder != "" && !knownBlockReorder[cfg.Layout.BlockReorder] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("unknown layout.block_reorder %q (known: none, reverse, ext-tsp, cache)", cfg.Layout.BlockReorder))
		}
		if cfg.Layout.FunctionReorder != "" && !knownFunctionReorder[cfg.Layout.FunctionReorder] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("unknown layout.function_reorder %q (known: none, exec-count, hfsort, hfsort+, cdsort)", cfg.Layout.FunctionReorder))
		}
	}

	if cfg.Verify.Harness == "" {
		r.Warnings = append(r.Warnings, "verify.harness is not set; verification runs the startup check only")
	}

	return r
}
