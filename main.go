// Package main is the entry point for the saleswire binary.
package main

import (
	"os"

	"github.com/saleswire/server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
