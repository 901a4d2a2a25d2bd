package main

import (
	"os"

	"github.com/deskmcp/deskmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
