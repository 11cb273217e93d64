// Package main is the entry point for jobcost-sync CLI.
package main

import (
	"os"

	"github.com/ridgeline-build/jobcost-sync/cmd/jobcost-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
