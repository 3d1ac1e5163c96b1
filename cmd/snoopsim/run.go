package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/loader"
	"github.com/sarchlab/snoopsim/system"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/latency"
	"github.com/sarchlab/snoopsim/tracing"
)

type runOptions struct {
	protocol   string
	configPath string
	cores      int
	cacheSize  int
	ways       int
	blockSize  int
	noCheck    bool
	failFast   bool
	sqlite     bool
	sqliteName string
	verbose    bool
	dump       bool
	jsonOut    bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <trace-dir>",
		Short: "Replay p0.trace, p1.trace, ... from a directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraces(cmd.OutOrStdout(), args[0], opts)
		},
	}

	defaults := cache.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVarP(&opts.protocol, "protocol", "p", envOr(envProtocol, "MESI"),
		"coherence protocol: MSI, MESI, MOSI or MOESI")
	flags.StringVarP(&opts.configPath, "config", "c", envOr(envConfig, ""),
		"path to a timing configuration JSON file")
	flags.IntVarP(&opts.cores, "cores", "n", 0,
		"number of processors (default: every trace in the directory)")
	flags.IntVar(&opts.cacheSize, "cache-size", defaults.Size, "private cache size in bytes")
	flags.IntVar(&opts.ways, "ways", defaults.Associativity, "private cache associativity")
	flags.IntVar(&opts.blockSize, "block-size", defaults.BlockSize, "cache line size in bytes")
	flags.BoolVar(&opts.noCheck, "no-check", false, "skip the per-cycle coherence checks")
	flags.BoolVar(&opts.failFast, "fail-fast", false,
		"exit at the first violation without printing statistics")
	flags.BoolVar(&opts.sqlite, "sqlite", false, "record transitions in a SQLite database")
	flags.StringVar(&opts.sqliteName, "sqlite-name", "",
		"database name without extension (default: a unique name)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every transition")
	flags.BoolVar(&opts.dump, "dump", false, "print every line controller at the end")
	flags.BoolVar(&opts.jsonOut, "json", false, "print statistics as JSON")

	return cmd
}

func loadTiming(path string) (*latency.TimingConfig, error) {
	if path == "" {
		return latency.DefaultTimingConfig(), nil
	}

	return latency.LoadConfig(path)
}

func runTraces(out io.Writer, dir string, opts *runOptions) error {
	family, err := coherence.FamilyByName(opts.protocol)
	if err != nil {
		return err
	}

	timing, err := loadTiming(opts.configPath)
	if err != nil {
		return err
	}

	traces, err := loader.LoadDir(dir, opts.cores)
	if err != nil {
		return err
	}

	builder := system.MakeBuilder().
		WithFamily(family).
		WithTimingConfig(timing).
		WithCacheConfig(cache.Config{
			Size:          opts.cacheSize,
			Associativity: opts.ways,
			BlockSize:     opts.blockSize,
		}).
		WithInvariantChecks(!opts.noCheck)

	if opts.failFast {
		builder = builder.WithFatalReporter(coherence.ExitReporter{
			Logger: log.New(os.Stderr, "snoopsim: ", 0),
		})
	}

	if opts.verbose {
		builder = builder.WithHook(tracing.NewLogTracer(log.New(os.Stderr, "", 0)))
	}

	var tracer *tracing.SQLiteTracer
	if opts.sqlite {
		tracer = tracing.NewSQLiteTracer(opts.sqliteName)
		if err := tracer.Init(); err != nil {
			return err
		}
		builder = builder.WithHook(tracer)
	}

	s, err := builder.Build(traces)
	if err != nil {
		return err
	}

	stats, runErr := s.Run()

	if tracer != nil {
		if err := tracer.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Transitions recorded in %s\n", tracer.FileName())
	}

	if stats != nil {
		if err := printStats(out, stats, opts.jsonOut); err != nil {
			return err
		}
	}

	if opts.dump {
		for _, c := range s.Caches() {
			for _, line := range c.Dump() {
				_, _ = fmt.Fprintln(out, line)
			}
		}
	}

	return runErr
}

func printStats(out io.Writer, stats *system.Stats, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	heading := color.New(color.Bold)

	_, _ = heading.Fprintf(out, "=== %s, %d cores ===\n", stats.Protocol, stats.Cores)
	_, _ = fmt.Fprintf(out, "Cycles:          %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(out, "Operations:      %d\n", stats.Retired())
	_, _ = fmt.Fprintf(out, "Cache Misses:    %d\n", stats.CacheMisses)
	_, _ = fmt.Fprintf(out, "Silent Upgrades: %d\n", stats.SilentUpgrades)
	_, _ = fmt.Fprintf(out, "Miss Rate:       %.3f\n", stats.MissRate())

	_, _ = heading.Fprintln(out, "--- Bus ---")
	_, _ = fmt.Fprintf(out, "Transactions:    %d (GETS %d, GETM %d)\n",
		stats.Bus.Transactions, stats.Bus.GetS, stats.Bus.GetM)
	_, _ = fmt.Fprintf(out, "Cache-to-Cache:  %d\n", stats.Bus.CacheToCache)
	_, _ = fmt.Fprintf(out, "Memory Fetches:  %d\n", stats.Bus.MemoryFetches)
	_, _ = fmt.Fprintf(out, "Busy Cycles:     %d\n", stats.Bus.BusyCycles)

	for i, c := range stats.Caches {
		_, _ = heading.Fprintf(out, "--- Cache %d ---\n", i)
		_, _ = fmt.Fprintf(out, "Loads/Stores:    %d/%d\n", c.Loads, c.Stores)
		_, _ = fmt.Fprintf(out, "Hits/Misses:     %d/%d\n", c.Hits, c.Misses)
		_, _ = fmt.Fprintf(out, "Data Supplied:   %d\n", c.DataSupplied)
		_, _ = fmt.Fprintf(out, "Invalidations:   %d\n", c.Invalidations)
	}

	return nil
}
