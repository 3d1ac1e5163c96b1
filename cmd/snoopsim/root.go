package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

const (
	envProtocol = "SNOOPSIM_PROTOCOL"
	envConfig   = "SNOOPSIM_CONFIG"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "snoopsim",
		Short: "Snoopsim simulates snooping bus cache coherence protocols.",
		Long: `Snoopsim replays per-processor memory traces on private caches ` +
			`kept coherent over a shared bus with the MSI, MESI, MOSI or ` +
			`MOESI protocol.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCommand(), newTableCommand(), newConfigCommand())

	return root
}

// Execute runs the command line and exits through atexit so registered
// flushers run.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
