package installer

import "context"

// Runner abstracts the external package-manager tool that materializes an
// install batch against the project manifest.
type Runner interface {
	// Name returns the tool name (e.g., "npm", "yarn").
	Name() string

	// Install runs a single install command covering all given package names.
	// The dev flag marks the packages as development dependencies. The whole
	// batch succeeds or fails as one unit, matching the single external
	// command that materializes it.
	Install(ctx context.Context, names []string, dev bool) error
}
