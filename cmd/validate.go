package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/pipeline"
)

var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline config and any existing run report",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result := config.Validate(cfg)

	// Also check the most recent report, if a previous run left one.
	if path := latestReport(cfgPath); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			errs, err := pipeline.ValidateReport(data)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("report schema error: %v", err))
			}
			for _, e := range errs {
				result.Errors = append(result.Errors, fmt.Sprintf("report.json: %s", e))
			}
		}
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
	}

	if strict && len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d warning(s) treated as errors in strict mode", len(result.Warnings))
	}
	if !result.IsValid() {
		return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
	}

	fmt.Println("Validation passed.")
	return nil
}

// latestReport returns the report.json of the newest run directory under
// the default output location, or "" when none exists.
func latestReport(cfgPath string) string {
	outDir := outputDir
	if outDir == "." {
		outDir = filepath.Join(filepath.Dir(cfgPath), ".pgopipe-output")
	}
	runs, err := filepath.Glob(filepath.Join(outDir, "run-*", "report.json"))
	if err != nil || len(runs) == 0 {
		return ""
	}
	latest := runs[0]
	for _, r := range runs[1:] {
		if r > latest {
			latest = r
		}
	}
	return latest
}
