package installer

import (
	"context"
)

type yarnRunner struct {
	binary string // Path to the yarn binary
	dir    string // Project directory containing the manifest
}

func (y *yarnRunner) Name() string {
	return "yarn"
}

func (y *yarnRunner) Install(ctx context.Context, names []string, dev bool) error {
	// yarn add [--dev] <names...>
	return runCommand(ctx, y.dir, y.binary, yarnArgs(names, dev)...)
}

func yarnArgs(names []string, dev bool) []string {
	args := []string{"add"}
	if dev {
		args = append(args, "--dev")
	}
	return append(args, names...)
}
