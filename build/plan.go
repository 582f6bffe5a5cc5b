// Package build defines the concrete pipeline stages that compile,
// profile, and re-optimize the target binary.
package build

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/pipeline"
)

// Artifact names used across stages. Each build produces a distinct
// binary artifact; nothing is overwritten in place.
const (
	BinaryInitial   = "initial"
	BinaryOptimized = "optimized"
	BinaryLayout    = "layout"

	RawProfileName       = "samples"
	ConvertedProfileName = "profile"
)

// Plan assembles the ordered stage list for the given configuration.
func Plan(cfg *config.Config) []pipeline.Stage {
	return []pipeline.Stage{
		InitialBuildStage(cfg),
		ProfileCollectStage(cfg),
		ProfileConvertStage(cfg),
		OptimizedBuildStage(cfg),
		LayoutOptimizeStage(cfg),
	}
}

// FinalBinary lists binary artifacts in priority order: the re-laid-out
// binary when the layout pass produced one, otherwise the optimized build.
func FinalBinary() []pipeline.ArtifactRef {
	return []pipeline.ArtifactRef{
		{Kind: artifact.KindBinary, Name: BinaryLayout},
		{Kind: artifact.KindBinary, Name: BinaryOptimized},
	}
}

// expand substitutes {key} placeholders in each argument.
func expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		out[i] = a
	}
	return out
}

// importFile copies a tool-produced file into the store and registers it.
// Copying keeps every build's output as its own artifact version even
// when the toolchain writes to a fixed path.
func importFile(store *artifact.Store, kind artifact.Kind, name, src, stage string) error {
	dst := store.AllocPath(kind, name)
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("importing %s/%s: %w", kind, name, err)
	}
	if _, err := store.Put(kind, name, dst, stage); err != nil {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
