package installer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Detect returns the appropriate Runner for the project at dir.
// Yarn is preferred when the project carries a yarn.lock, otherwise npm.
func Detect(dir string) (Runner, error) {
	if _, err := os.Stat(filepath.Join(dir, "yarn.lock")); err == nil {
		if path, err := exec.LookPath("yarn"); err == nil {
			return &yarnRunner{binary: path, dir: dir}, nil
		}
	}

	if path, err := exec.LookPath("npm"); err == nil {
		return &npmRunner{binary: path, dir: dir}, nil
	}

	if path, err := exec.LookPath("yarn"); err == nil {
		return &yarnRunner{binary: path, dir: dir}, nil
	}

	return nil, fmt.Errorf("no supported package manager found (checked npm, yarn)")
}

// ForTool returns the Runner for an explicitly configured tool name.
// An empty name or "auto" falls back to detection.
func ForTool(tool, dir string) (Runner, error) {
	switch tool {
	case "", "auto":
		return Detect(dir)
	case "npm":
		path, err := exec.LookPath("npm")
		if err != nil {
			return nil, fmt.Errorf("npm not found on PATH: %w", err)
		}
		return &npmRunner{binary: path, dir: dir}, nil
	case "yarn":
		path, err := exec.LookPath("yarn")
		if err != nil {
			return nil, fmt.Errorf("yarn not found on PATH: %w", err)
		}
		return &yarnRunner{binary: path, dir: dir}, nil
	default:
		return nil, fmt.Errorf("unsupported tool %q (supported: npm, yarn)", tool)
	}
}
