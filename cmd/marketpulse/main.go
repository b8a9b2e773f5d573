package main

import (
	"os"

	"marketpulse/cmd/marketpulse/commands"
)

// main is the entry point for the marketpulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
