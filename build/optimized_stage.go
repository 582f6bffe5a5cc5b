package build

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/internal/logging"
	"github.com/pgopipe/pgopipe/pipeline"
)

// StageOptimizedBuild is the mandatory second build. When a converted
// profile exists it is fed to the compiler; when the profiling stages
// were skipped or degraded, the build proceeds without profile-guided
// input rather than failing.
const StageOptimizedBuild = "optimized-build"

// OptimizedBuildStage constructs the optimized-build stage from config.
func OptimizedBuildStage(cfg *config.Config) pipeline.Stage {
	return pipeline.Stage{
		Name:     StageOptimizedBuild,
		Wants:    []pipeline.ArtifactRef{{Kind: artifact.KindConvertedProfile, Name: ConvertedProfileName}},
		Produces: []pipeline.ArtifactRef{{Kind: artifact.KindBinary, Name: BinaryOptimized}},

		Plan: func(_ context.Context, rc *pipeline.RunContext) ([]invoke.Request, error) {
			args := append([]string{}, cfg.Build.Args...)
			args = append(args, cfg.Build.LTOArgs...)

			profile, err := rc.Store.GetValid(artifact.KindConvertedProfile, ConvertedProfileName)
			switch {
			case err == nil:
				args = append(args, expand(cfg.Build.ProfileArgs, map[string]string{
					"profile": profile.Path,
				})...)
			case errors.Is(err, artifact.ErrNotFound):
				logging.New("stage").Info("no converted profile; building without profile-guided input",
					"stage", StageOptimizedBuild)
			default:
				return nil, err
			}

			return []invoke.Request{{
				Stage:   StageOptimizedBuild,
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
			return importFile(rc.Store, artifact.KindBinary, BinaryOptimized, src, StageOptimizedBuild)
		},
	}
}
