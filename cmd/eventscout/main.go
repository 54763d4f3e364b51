// Package main provides the entry point for the eventscout CLI.
package main

import (
	"os"

	"github.com/eventscout/eventscout/cmd/eventscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
