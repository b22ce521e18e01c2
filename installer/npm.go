package installer

import (
	"context"
)

type npmRunner struct {
	binary string // Path to the npm binary
	dir    string // Project directory containing the manifest
}

func (n *npmRunner) Name() string {
	return "npm"
}

func (n *npmRunner) Install(ctx context.Context, names []string, dev bool) error {
	// npm install [--save-dev] <names...>
	return runCommand(ctx, n.dir, n.binary, npmArgs(names, dev)...)
}

func npmArgs(names []string, dev bool) []string {
	args := []string{"install"}
	if dev {
		args = append(args, "--save-dev")
	}
	return append(args, names...)
}
