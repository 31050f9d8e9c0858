package main

import (
	"os"

	"github.com/imperius/imperius/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
