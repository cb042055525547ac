package main

import (
	"os"

	"github.com/me/flowrun/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
