// Package main is the entry point for the pricectl CLI.
// The CLI is the terminal tool for submitting reports and managing
// saved listings against the pricedeck API.
package main

import (
	"os"
	"pricedeck/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
