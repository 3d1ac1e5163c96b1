// Package benchmarks provides synthetic sharing workloads and a harness that
// compares the coherence protocols on them.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/loader"
	"github.com/sarchlab/snoopsim/system"
	"github.com/sarchlab/snoopsim/timing/cache"
	"github.com/sarchlab/snoopsim/timing/latency"
)

// BenchmarkResult holds the results of one workload under one protocol.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Protocol is the coherence family the caches ran
	Protocol string `json:"protocol"`

	// Cores is the number of processors
	Cores int `json:"cores"`

	// SimulatedCycles is the number of cycles until every trace retired
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Operations is the number of loads and stores retired
	Operations uint64 `json:"operations"`

	// CacheMisses counts requests that needed the bus
	CacheMisses uint64 `json:"cache_misses"`

	// SilentUpgrades counts E to M transitions without a bus transaction
	SilentUpgrades uint64 `json:"silent_upgrades"`

	// MissRate is misses per operation
	MissRate float64 `json:"miss_rate"`

	// Bus statistics
	BusTransactions uint64 `json:"bus_transactions"`
	CacheToCache    uint64 `json:"cache_to_cache"`
	MemoryFetches   uint64 `json:"memory_fetches"`
	BusBusyCycles   uint64 `json:"bus_busy_cycles"`

	// Error is set when the run stopped on a failure
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a synthetic workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Traces builds one trace per core
	Traces func(cores, ops int) []*loader.Trace
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Families are the protocols every benchmark runs under
	Families []*coherence.Family

	// Cores is the number of processors
	Cores int

	// Ops is the number of operations per core
	Ops int

	// Timing is the bus and memory timing model
	Timing *latency.TimingConfig

	// Cache is the private cache geometry
	Cache cache.Config

	// CheckInvariants verifies coherence after every cycle
	CheckInvariants bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Families:        coherence.Families(),
		Cores:           4,
		Ops:             500,
		Timing:          latency.DefaultTimingConfig(),
		Cache:           cache.DefaultConfig(),
		CheckInvariants: false,
		Output:          os.Stdout,
		Verbose:         false,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark under every family and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks)*len(h.config.Families))

	for _, bench := range h.benchmarks {
		for _, family := range h.config.Families {
			result := h.runBenchmark(bench, family)
			if h.config.Verbose {
				_, _ = fmt.Fprintf(h.config.Output, "ran %s/%s in %v\n",
					result.Name, result.Protocol, result.WallTime)
			}
			results = append(results, result)
		}
	}

	return results
}

// runBenchmark executes a single benchmark under one family.
func (h *Harness) runBenchmark(bench Benchmark, family *coherence.Family) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Protocol:    family.Name(),
		Cores:       h.config.Cores,
	}

	s, err := system.MakeBuilder().
		WithFamily(family).
		WithTimingConfig(h.config.Timing).
		WithCacheConfig(h.config.Cache).
		WithInvariantChecks(h.config.CheckInvariants).
		Build(bench.Traces(h.config.Cores, h.config.Ops))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	stats, err := s.Run()
	result.WallTime = time.Since(start)

	if err != nil {
		result.Error = err.Error()
	}

	if stats == nil {
		return result
	}

	result.SimulatedCycles = stats.Cycles
	result.Operations = stats.Retired()
	result.CacheMisses = stats.CacheMisses
	result.SilentUpgrades = stats.SilentUpgrades
	result.MissRate = stats.MissRate()
	result.BusTransactions = stats.Bus.Transactions
	result.CacheToCache = stats.Bus.CacheToCache
	result.MemoryFetches = stats.Bus.MemoryFetches
	result.BusBusyCycles = stats.Bus.BusyCycles

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	heading := color.New(color.Bold)
	failure := color.New(color.FgRed)

	_, _ = heading.Fprintln(h.config.Output, "=== Snoopsim Coherence Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = heading.Fprintf(h.config.Output, "Benchmark: %s (%s)\n", r.Name, r.Protocol)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = failure.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Cores ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles: %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Operations:       %d\n", r.Operations)
		_, _ = fmt.Fprintf(h.config.Output, "  Cache Misses:     %d\n", r.CacheMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  Miss Rate:        %.3f\n", r.MissRate)
		if r.SilentUpgrades > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Silent Upgrades:  %d\n", r.SilentUpgrades)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Bus ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Transactions:     %d\n", r.BusTransactions)
		_, _ = fmt.Fprintf(h.config.Output, "  Cache-to-Cache:   %d\n", r.CacheToCache)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Fetches:   %d\n", r.MemoryFetches)
		_, _ = fmt.Fprintf(h.config.Output, "  Busy Cycles:      %d\n", r.BusBusyCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,protocol,cores,cycles,operations,misses,silent_upgrades,miss_rate,transactions,cache_to_cache,memory_fetches,bus_busy_cycles,error")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%d,%d,%.4f,%d,%d,%d,%d,%q\n",
			r.Name,
			r.Protocol,
			r.Cores,
			r.SimulatedCycles,
			r.Operations,
			r.CacheMisses,
			r.SilentUpgrades,
			r.MissRate,
			r.BusTransactions,
			r.CacheToCache,
			r.MemoryFetches,
			r.BusBusyCycles,
			r.Error,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Cores  int                   `json:"cores"`
	Ops    int                   `json:"ops_per_core"`
	Timing *latency.TimingConfig `json:"timing"`
	Cache  cache.Config          `json:"cache"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmark runs
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of runs that stopped on an error
	Failed int `json:"failed"`

	// MissesByProtocol sums the cache misses of each protocol
	MissesByProtocol map[string]uint64 `json:"misses_by_protocol"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{
		TotalBenchmarks:  len(results),
		MissesByProtocol: make(map[string]uint64),
	}

	for _, r := range results {
		if r.Error != "" {
			summary.Failed++
		}
		summary.MissesByProtocol[r.Protocol] += r.CacheMisses
		summary.TotalWallTime += r.WallTime
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config: BenchmarkConfig{
				Cores:  h.config.Cores,
				Ops:    h.config.Ops,
				Timing: h.config.Timing,
				Cache:  h.config.Cache,
			},
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
