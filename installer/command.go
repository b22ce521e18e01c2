package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const installTimeout = 5 * time.Minute

// runCommand executes the tool binary in the project directory, capturing
// combined output for diagnostics.
func runCommand(ctx context.Context, dir, bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s failed: %w\nOutput: %s", bin, strings.Join(args, " "), err, string(output))
	}

	return nil
}
