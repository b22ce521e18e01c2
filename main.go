package main

import (
	"os"

	"depflow/cmd"
)

var Version string

func main() {
	cmd.Version = Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
