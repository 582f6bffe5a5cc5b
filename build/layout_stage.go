package build

import (
	"context"
	"time"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
)

// StageLayoutOptimize is the optional post-link pass that re-lays-out the
// optimized binary. On failure the pipeline proceeds with the pre-layout
// binary as the final artifact.
const StageLayoutOptimize = "layout-optimize"

const defaultLayoutTimeout = 15 * time.Minute

// LayoutOptimizeStage constructs the layout-optimize stage from config,
// mapping the configured option set to tool flags.
func LayoutOptimizeStage(cfg *config.Config) pipeline.Stage {
	return pipeline.Stage{
		Name:     StageLayoutOptimize,
		Optional: true,
		Disabled: !cfg.Layout.IsEnabled(),
		Consumes: []pipeline.ArtifactRef{{Kind: artifact.KindBinary, Name: BinaryOptimized}},
		Wants:    []pipeline.ArtifactRef{{Kind: artifact.KindConvertedProfile, Name: ConvertedProfileName}},
		Produces: []pipeline.ArtifactRef{{Kind: artifact.KindBinary, Name: BinaryLayout}},

		Plan: func(_ context.Context, rc *pipeline.RunContext) ([]invoke.Request, error) {
			binary, err := rc.Store.GetValid(artifact.KindBinary, BinaryOptimized)
			if err != nil {
				return nil, err
			}
			output := rc.Store.AllocPath(artifact.KindBinary, BinaryLayout)

			args := []string{binary.Path, "-o", output}
			args = append(args, layoutFlags(cfg.Layout)...)

			vars := map[string]string{
				"binary": binary.Path,
				"output": output,
			}
			if profile, err := rc.Store.GetValid(artifact.KindConvertedProfile, ConvertedProfileName); err == nil {
				vars["profile"] = profile.Path
			}
			args = append(args, expand(cfg.Layout.Args, vars)...)

			return []invoke.Request{{
				Stage:   StageLayoutOptimize,
				Label:   "relayout",
				Command: cfg.Layout.Command,
				Args:    args,
				Dir:     rc.WorkDir,
				Timeout: cfg.Layout.Timeout.Std(defaultLayoutTimeout),
			}}, nil
		},

		Commit: func(_ context.Context, rc *pipeline.RunContext) error {
			output := rc.Store.AllocPath(artifact.KindBinary, BinaryLayout)
			_, err := rc.Store.Put(artifact.KindBinary, BinaryLayout, output, StageLayoutOptimize)
			return err
		},
	}
}

// layoutFlags maps the configured layout option set to tool flags.
func layoutFlags(l config.LayoutRef) []string {
	var flags []string
	if l.BlockReorder != "" {
		flags = append(flags, "-reorder-blocks="+l.BlockReorder)
	}
	if l.FunctionReorder != "" {
		flags = append(flags, "-reorder-functions="+l.FunctionReorder)
	}
	if l.SplitFunctions {
		flags = append(flags, "-split-functions")
	}
	if l.ICF != "" && l.ICF != "none" {
		flags = append(flags, "-icf="+l.ICF)
	}
	return flags
}
