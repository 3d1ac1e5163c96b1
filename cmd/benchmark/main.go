// Command benchmark runs the coherence benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results in JSON format
//	-cores      Number of processors (default: 4)
//	-ops        Operations per processor (default: 500)
//	-workload   Run a single workload
//	-protocol   Run a single protocol
//	-config     Path to a timing configuration JSON file
//	-check      Verify coherence after every cycle
//
// Example:
//
//	# Compare all protocols on all workloads
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/snoopsim/benchmarks"
	"github.com/sarchlab/snoopsim/coherence"
	"github.com/sarchlab/snoopsim/timing/latency"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	cores := flag.Int("cores", 4, "Number of processors")
	ops := flag.Int("ops", 500, "Operations per processor")
	workload := flag.String("workload", "", "Run a single workload")
	protocol := flag.String("protocol", "", "Run a single protocol")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	check := flag.Bool("check", false, "Verify coherence after every cycle")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	config.Cores = *cores
	config.Ops = *ops
	config.CheckInvariants = *check
	config.Output = os.Stdout

	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	if *protocol != "" {
		family, err := coherence.FamilyByName(*protocol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config.Families = []*coherence.Family{family}
	}

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	if *workload != "" {
		b, err := benchmarks.WorkloadByName(*workload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		harness.AddBenchmark(b)
	} else {
		harness.AddBenchmarks(benchmarks.GetWorkloads())
	}

	human := !*csvOutput && !*jsonOutput

	// Print configuration
	if human {
		fmt.Println("Snoopsim Coherence Benchmark Harness")
		fmt.Println("====================================")
		fmt.Printf("Cores: %d\n", config.Cores)
		fmt.Printf("Ops per core: %d\n", config.Ops)
		fmt.Println("")
	}

	// Run benchmarks
	results := harness.RunAll()

	// Output results
	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- private_rmw: MESI/MOESI upgrade silently where MSI/MOSI issue GETM")
		fmt.Println("- read_sharing: misses only on first touch")
		fmt.Println("- write_pingpong: every store migrates the line")
		fmt.Println("- migratory: read-then-write pays for an upgrade on every handoff")
		fmt.Println("- producer_consumer: MOSI/MOESI serve dirty reads from the owner")
	}

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}
