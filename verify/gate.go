// Package verify runs smoke checks against the produced binary and
// decides pass/fail for the whole pipeline.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/internal/logging"
	"github.com/pgopipe/pgopipe/pipeline"
)

const defaultCheckTimeout = 2 * time.Minute

// Gate performs the fixed smoke-check list on a binary artifact. Any
// check failure fails verification; there is no partial pass.
type Gate struct {
	Cfg     config.VerifyRef
	WorkDir string
}

// NewGate creates a Gate with the given verification config.
func NewGate(cfg config.VerifyRef, workDir string) *Gate {
	return &Gate{Cfg: cfg, WorkDir: workDir}
}

// Verify implements pipeline.Gate. It runs the startup check and, when a
// harness is configured, the external smoke-test harness against the
// binary. The first failing check fails verification with a diagnostic
// drawn from the captured tool output.
func (g *Gate) Verify(ctx context.Context, rc *pipeline.RunContext, binary *artifact.Artifact) error {
	log := logging.New("verify")
	timeout := g.Cfg.Timeout.Std(defaultCheckTimeout)

	startupArgs := g.Cfg.StartupArgs
	if len(startupArgs) == 0 {
		startupArgs = []string{"--version"}
	}

	checks := []invoke.Request{{
		Stage:   pipeline.VerifyStageName,
		Label:   "startup",
		Command: binary.Path,
		Args:    startupArgs,
		Dir:     g.WorkDir,
		Timeout: timeout,
	}}

	if g.Cfg.Harness != "" {
		harnessArgs := []string{binary.Path}
		if len(g.Cfg.HarnessArgs) > 0 {
			harnessArgs = expandBinary(g.Cfg.HarnessArgs, binary.Path)
		}
		checks = append(checks, invoke.Request{
			Stage:   pipeline.VerifyStageName,
			Label:   "smoke",
			Command: g.Cfg.Harness,
			Args:    harnessArgs,
			Dir:     g.WorkDir,
			Timeout: timeout,
		})
	}

	for _, check := range checks {
		out := rc.Invoker.Run(ctx, check)
		if !out.OK() {
			detail := fmt.Sprintf("check %s failed: %s", check.Label, out.Err)
			if out.Log != nil {
				detail += fmt.Sprintf(" [log: %s]", out.Log.Path)
			}
			return fmt.Errorf("%s", detail)
		}
		log.Info("check passed", "check", check.Label, "duration", out.Duration.String())
	}
	return nil
}

func expandBinary(args []string, binaryPath string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, "{binary}", binaryPath)
	}
	return out
}
