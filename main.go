package main

import (
	"os"

	"github.com/spigell/scratchfs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
