package main

import (
	"os"

	"github.com/depotkit/depotkit/cmd/depotkit/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
