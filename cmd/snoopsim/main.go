// Package main provides the snoopsim command line.
//
// Usage:
//
//	snoopsim run [flags] <trace-dir>
//	snoopsim table [protocol...]
//	snoopsim config [path]
//
// Flag defaults can be set in a .env file or the environment:
// SNOOPSIM_PROTOCOL selects the protocol and SNOOPSIM_CONFIG points to a
// timing configuration file.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	Execute()
}
