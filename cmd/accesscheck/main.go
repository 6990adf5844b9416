// Package main is the entry point for the accesscheck CLI.
package main

import (
	"os"

	"github.com/jmylchreest/accesscheck/cmd/accesscheck/commands"
)

func main() {
	os.Exit(commands.ExitCode(commands.Execute()))
}
