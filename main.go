// Package main provides the entry point for Snoopsim.
// Snoopsim is a cycle-level snooping cache-coherence simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/snoopsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("Snoopsim - Snooping Cache-Coherence Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: snoopsim run [options] <trace-dir>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -p, --protocol  Coherence protocol (MSI, MESI, MOSI, MOESI)")
	fmt.Println("  -c, --config    Path to timing configuration JSON file")
	fmt.Println("  -n, --cores     Number of processors")
	fmt.Println("  -v, --verbose   Log every transition and bus transaction")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/snoopsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/snoopsim' instead.")
	}
}
