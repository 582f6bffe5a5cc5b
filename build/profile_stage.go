package build

import (
	"context"
	"strconv"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
	"github.com/pgopipe/pgopipe/probe"
)

// StageProfileCollect samples the initial binary under the configured
// workload. Optional: without hardware counters the pipeline continues
// with a plain optimized build.
const StageProfileCollect = "profile-collect"

const defaultObservation = 60 * time.Second

// ProfileCollectStage constructs the profile-collect stage from config.
func ProfileCollectStage(cfg *config.Config) pipeline.Stage {
	observation := cfg.Profile.Duration.Std(defaultObservation)

	return pipeline.Stage{
		Name:           StageProfileCollect,
		Optional:       true,
		Requires:       probe.PerfEvents,
		Disabled:       !cfg.Profile.IsEnabled(),
		RetryOnTimeout: cfg.Profile.RetryOnTimeout,
		Consumes:       []pipeline.ArtifactRef{{Kind: artifact.KindBinary, Name: BinaryInitial}},
		Produces:       []pipeline.ArtifactRef{{Kind: artifact.KindRawProfile, Name: RawProfileName}},

		Plan: func(_ context.Context, rc *pipeline.RunContext) ([]invoke.Request, error) {
			binary, err := rc.Store.GetValid(artifact.KindBinary, BinaryInitial)
			if err != nil {
				return nil, err
			}
			output := rc.Store.AllocPath(artifact.KindRawProfile, RawProfileName)

			args := expand(cfg.Profile.Args, map[string]string{
				"binary":   binary.Path,
				"duration": strconv.Itoa(int(observation.Seconds())),
				"output":   output,
			})

			// The collection blocks for the whole observation window, so
			// the call timeout must comfortably contain it.
			timeout := cfg.Profile.Timeout.Std(observation + 5*time.Minute)

			return []invoke.Request{{
				Stage:   StageProfileCollect,
				Label:   "sample",
				Command: cfg.Profile.Command,
				Args:    args,
				Dir:     rc.WorkDir,
				Timeout: timeout,
			}}, nil
		},

		Commit: func(_ context.Context, rc *pipeline.RunContext) error {
			output := rc.Store.AllocPath(artifact.KindRawProfile, RawProfileName)
			_, err := rc.Store.Put(artifact.KindRawProfile, RawProfileName, output, StageProfileCollect)
			return err
		},
	}
}
