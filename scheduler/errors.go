package scheduler

import (
	"fmt"
	"strings"
)

// InstallError is the terminal failure delivered to every request in a
// group whose external install command failed. No per-package attribution
// is attempted; the command covers the whole group atomically.
type InstallError struct {
	Names []string
	Err   error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("Could not install packages %s: %v", strings.Join(e.Names, ", "), e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
