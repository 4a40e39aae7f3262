// Package main provides the entry point for the archivist CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/archivist/cmd/archivist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
