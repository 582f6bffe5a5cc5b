package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	off := false
	return &Config{
		Target: TargetRef{Name: "myapp"},
		Build: BuildRef{
			Command:     "clang",
			Binary:      "myapp",
			LTOArgs:     []string{"-flto"},
			ProfileArgs: []string{"-fprofile-use={profile}"},
		},
		Profile: ProfileRef{Command: "perf"},
		Convert: ConvertRef{Command: "llvm-profgen"},
		Layout:  LayoutRef{Enabled: &off},
		Verify:  VerifyRef{Harness: "./smoke.sh"},
	}
}

func hasMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestValidateOK(t *testing.T) {
	r := Validate(validConfig())
	if !r.IsValid() {
		t.Fatalf("valid config rejected: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", r.Warnings)
	}
}

func TestValidateTargetName(t *testing.T) {
	cfg := validConfig()
	cfg.Target.Name = "My App!"
	r := Validate(cfg)
	if r.IsValid() || !hasMessage(r.Errors, "target.name") {
		t.Errorf("bad target name not rejected: %v", r.Errors)
	}
}

func TestValidateProfilingRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Profile.Command = ""
	cfg.Convert.Command = ""
	r := Validate(cfg)
	if !hasMessage(r.Errors, "profile.command") || !hasMessage(r.Errors, "convert.command") {
		t.Errorf("enabled profiling without commands not rejected: %v", r.Errors)
	}

	// With profiling off, the same config is fine.
	off := false
	cfg.Profile.Enabled = &off
	r = Validate(cfg)
	if !r.IsValid() {
		t.Errorf("disabled profiling should not require commands: %v", r.Errors)
	}
}

func TestValidateLayoutOptions(t *testing.T) {
	on := true
	cfg := validConfig()
	cfg.Layout = LayoutRef{Enabled: &on, Command: "llvm-bolt", ICF: "aggressive"}
	r := Validate(cfg)
	if !hasMessage(r.Errors, "layout.icf") {
		t.Errorf("unknown icf level not rejected: %v", r.Errors)
	}

	cfg.Layout = LayoutRef{Enabled: &on, Command: "llvm-bolt", BlockReorder: "random", FunctionReorder: "alphabetical"}
	r = Validate(cfg)
	if !r.IsValid() {
		t.Errorf("unknown reorder names are warnings, not errors: %v", r.Errors)
	}
	if !hasMessage(r.Warnings, "block_reorder") || !hasMessage(r.Warnings, "function_reorder") {
		t.Errorf("unknown reorder names should warn: %v", r.Warnings)
	}

	cfg.Layout = LayoutRef{Enabled: &on}
	r = Validate(cfg)
	if !hasMessage(r.Errors, "layout.command") {
		t.Errorf("enabled layout without command not rejected: %v", r.Errors)
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.Build.LTOArgs = nil
	cfg.Build.ProfileArgs = nil
	cfg.Verify.Harness = ""
	r := Validate(cfg)
	if !r.IsValid() {
		t.Fatalf("warnings must not fail validation: %v", r.Errors)
	}
	for _, want := range []string{"lto_args", "profile_args", "harness"} {
		if !hasMessage(r.Warnings, want) {
			t.Errorf("missing warning about %s: %v", want, r.Warnings)
		}
	}
}
