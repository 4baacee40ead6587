package main

import (
	"os"

	"github.com/quantbr/indice/cmd/indice/commands"
)

// main is the entry point for the indice CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
