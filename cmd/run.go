package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pgopipe/pgopipe/artifact"
	"github.com/pgopipe/pgopipe/build"
	"github.com/pgopipe/pgopipe/config"
	"github.com/pgopipe/pgopipe/internal/tui"
	"github.com/pgopipe/pgopipe/invoke"
	"github.com/pgopipe/pgopipe/pipeline"
	"github.com/pgopipe/pgopipe/probe"
	"github.com/pgopipe/pgopipe/verify"
)

var assumePerf string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the optimization pipeline for the configured target",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&assumePerf, "assume-perf", "",
		"skip the perf probe and assume a result: available or unavailable")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result := config.Validate(cfg)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
		}
		return fmt.Errorf("config validation failed: %d error(s)", len(result.Errors))
	}

	// Flag beats config beats the .pgopipe-output default.
	outDir := outputDir
	if outDir == "." && cfg.OutputDir != "" {
		outDir = cfg.OutputDir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(filepath.Dir(cfgPath), outDir)
		}
	}
	if outDir == "." {
		outDir = filepath.Join(filepath.Dir(cfgPath), ".pgopipe-output")
	}
	runDir := filepath.Join(outDir, "run-"+time.Now().Format("20060102-150405"))
	store, err := artifact.New(runDir)
	if err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	workDir := cfg.Target.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(cfgPath)
	} else if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(filepath.Dir(cfgPath), workDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober, err := selectProber()
	if err != nil {
		return err
	}
	rc := &pipeline.RunContext{
		Store:   store,
		Invoker: &invoke.OSInvoker{Store: store},
		Capabilities: map[probe.Capability]probe.Result{
			probe.PerfEvents: prober.Probe(ctx, probe.PerfEvents),
		},
		WorkDir: workDir,
	}

	seq := pipeline.NewSequencer(cfg.Target.Name, build.Plan(cfg),
		verify.NewGate(cfg.Verify, workDir), build.FinalBinary())

	var report *pipeline.Report
	if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
		report, err = runWithProgress(ctx, seq, rc)
		if err != nil {
			return err
		}
	} else {
		report = seq.Run(ctx, rc)
	}

	printSummary(report, runDir)
	exitCode = report.Verdict.ExitCode()
	return nil
}

// runWithProgress drives the sequencer under the interactive stage view,
// forwarding its events into the bubbletea program.
func runWithProgress(ctx context.Context, seq *pipeline.Sequencer, rc *pipeline.RunContext) (*pipeline.Report, error) {
	names := make([]string, 0, len(seq.Stages)+1)
	for _, s := range seq.Stages {
		names = append(names, s.Name)
	}
	names = append(names, pipeline.VerifyStageName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewProgress(seq.Target, names, appVersion, cancel))
	seq.Notify = func(e pipeline.Event) { p.Send(e) }

	reports := make(chan *pipeline.Report, 1)
	go func() { reports <- seq.Run(ctx, rc) }()

	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("progress view failed: %w", err)
	}
	return <-reports, nil
}

func printSummary(report *pipeline.Report, runDir string) {
	fmt.Printf("Pipeline %s: %s\n", report.Target, report.Verdict)
	if report.Aborted {
		fmt.Printf("Aborted at stage %q: %s\n", report.AbortStage, report.AbortReason)
	}
	if report.FinalBinary != "" {
		fmt.Printf("Final binary: %s\n", report.FinalBinary)
	}
	fmt.Printf("Report: %s\n", filepath.Join(runDir, "report.json"))
}

func selectProber() (probe.Prober, error) {
	switch assumePerf {
	case "":
		return &probe.PerfProber{}, nil
	case "available":
		return probe.StaticProber{probe.PerfEvents: probe.Available}, nil
	case "unavailable":
		return probe.StaticProber{probe.PerfEvents: probe.Unavailable}, nil
	default:
		return nil, fmt.Errorf("invalid --assume-perf value %q (want available or unavailable)", assumePerf)
	}
}

func resolveConfigPath() (string, error) {
	if filepath.IsAbs(cfgFile) {
		return cfgFile, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(wd, cfgFile), nil
}
