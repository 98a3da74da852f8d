package main

import (
	"os"

	"github.com/atmx/paper-engine/cmd/paperctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
