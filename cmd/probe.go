package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgopipe/pgopipe/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe the environment for profiling capabilities",
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	prober := &probe.PerfProber{}
	result := prober.Probe(cmd.Context(), probe.PerfEvents)
	fmt.Printf("%s: %s\n", probe.PerfEvents, result)

	switch result {
	case probe.Available:
		fmt.Println("Profile collection will run.")
	case probe.Unavailable:
		fmt.Println("Profile collection will be skipped; builds proceed without profile-guided input.")
	default:
		fmt.Println("Probe result inconclusive; profile collection will be attempted.")
	}
	return nil
}
