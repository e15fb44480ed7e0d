package main

import (
	"os"

	"github.com/ostafen/doclookup/cmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
