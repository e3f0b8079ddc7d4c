package main

import (
	"fmt"
	"os"

	"hora/cmd/hora/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
