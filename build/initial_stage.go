package build

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
)

// StageInitialBuild is the mandatory first build: link-time optimized,
// instrumentation-free, the binary the profiler observes.
const StageInitialBuild = "initial-build"

const defaultBuildTimeout = 30 * time.Minute

// InitialBuildStage constructs the initial-build stage from config.
func InitialBuildStage(cfg *config.Config) pipeline.Stage {
	return pipeline.Stage{
		Name:     StageInitialBuild,
		Produces: []pipeline.ArtifactRef{{Kind: artifact.KindBinary, Name: BinaryInitial}},

		Plan: func(_ context.Context, rc *pipeline.RunContext) ([]invoke.Request, error) {
			args := append([]string{}, cfg.Build.Args...)
			args = append(args, cfg.Build.LTOArgs...)
			return []invoke.Request{{
				Stage:   StageInitialBuild,
				Label:   "compile",
				Command: cfg.Build.Command,
				Args:    args,
				Dir:     rc.WorkDir,
				Env:     cfg.Build.Env,
				Timeout: cfg.Build.Timeout.Std(defaultBuildTimeout),
			}}, nil
		},

		Commit: func(_ context.Context, rc *pipeline.RunContext) error {
			src := filepath.Join(rc.WorkDir, cfg.Build.Binary)
			return importFile(rc.Store, artifact.KindBinary, BinaryInitial, src, StageInitialBuild)
		},
	}
}
