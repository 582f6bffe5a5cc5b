package build

import (
	"context"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
	"github.com/pgopipe/pgopipe/probe"
)

// StageProfileConvert turns raw hardware samples into the
// compiler-consumable profile format, symbolized against the binary the
// samples were taken from.
const StageProfileConvert = "profile-convert"

const defaultConvertTimeout = 10 * time.Minute

// ProfileConvertStage constructs the profile-convert stage from config.
// It shares the profiling capability gate so a counter-less environment
// skips collection and conversion together.
func ProfileConvertStage(cfg *config.Config) pipeline.Stage {
	return pipeline.Stage{
		Name:     StageProfileConvert,
		Optional: true,
		Requires: probe.PerfEvents,
		Disabled: !cfg.Profile.IsEnabled(),
		Consumes: []pipeline.ArtifactRef{
			{Kind: artifact.KindRawProfile, Name: RawProfileName},
			{Kind: artifact.KindBinary, Name: BinaryInitial},
		},
		Produces: []pipeline.ArtifactRef{{Kind: artifact.KindConvertedProfile, Name: ConvertedProfileName}},

		Plan: func(_ context.Context, rc *pipeline.RunContext) ([]invoke.Request, error) {
			raw, err := rc.Store.GetValid(artifact.KindRawProfile, RawProfileName)
			if err != nil {
				return nil, err
			}
			binary, err := rc.Store.GetValid(artifact.KindBinary, BinaryInitial)
			if err != nil {
				return nil, err
			}
			output := rc.Store.AllocPath(artifact.KindConvertedProfile, ConvertedProfileName)

			args := expand(cfg.Convert.Args, map[string]string{
				"raw_profile": raw.Path,
				"binary":      binary.Path,
				"output":      output,
			})

			return []invoke.Request{{
				Stage:   StageProfileConvert,
				Label:   "convert",
				Command: cfg.Convert.Command,
				Args:    args,
				Dir:     rc.WorkDir,
				Timeout: cfg.Convert.Timeout.Std(defaultConvertTimeout),
			}}, nil
		},

		Commit: func(_ context.Context, rc *pipeline.RunContext) error {
			output := rc.Store.AllocPath(artifact.KindConvertedProfile, ConvertedProfileName)
			_, err := rc.Store.Put(artifact.KindConvertedProfile, ConvertedProfileName, output, StageProfileConvert)
			return err
		},
	}
}
