package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

const runTestConfig = `
target:
  name: app
build:
  command: sh
  args: ["-c", "printf '#!/bin/sh\nexit 0\n' > app; chmod +x app"]
  lto_args: ["lto"]
  profile_args: ["use={profile}"]
  binary: app
profile:
  command: perf
  args: ["record", "-o", "{output}", "--", "{binary}"]
convert:
  command: llvm-profgen
  args: ["--output={output}"]
layout:
  enabled: false
`

func setFlags(t *testing.T, config, output, perf string) {
	t.Helper()
	oldCfg, oldOut, oldPlain, oldPerf, oldCode := cfgFile, outputDir, plain, assumePerf, exitCode
	t.Cleanup(func() {
		cfgFile, outputDir, plain, assumePerf, exitCode = oldCfg, oldOut, oldPlain, oldPerf, oldCode
	})
	cfgFile, outputDir, plain, assumePerf, exitCode = config, output, true, perf, 0
}

func TestRunCommandSurfacesExitCode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(cfgPath, []byte(runTestConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	setFlags(t, cfgPath, ".", "unavailable")

	// The handler must return normally so its deferred cleanup runs; the
	// verdict reaches the process exit only through Execute.
	if err := runRun(runCmd, nil); err != nil {
		t.Fatalf("runRun: %v", err)
	}
	if exitCode != 2 {
		t.Errorf("exit code = %d, want 2 for a degraded run", exitCode)
	}

	reports, err := filepath.Glob(filepath.Join(dir, ".pgopipe-output", "run-*", "report.json"))
	if err != nil || len(reports) != 1 {
		t.Fatalf("report.json not written, glob = %v (%v)", reports, err)
	}
}

func TestRunCommandInvalidAssumePerf(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(cfgPath, []byte(runTestConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	setFlags(t, cfgPath, ".", "maybe")

	if err := runRun(runCmd, nil); err == nil {
		t.Fatal("invalid --assume-perf value should fail")
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0 when the command errors instead", exitCode)
	}
}
