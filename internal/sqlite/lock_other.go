//go:build !unix

package sqlite

import (
	"fmt"
	"os"
)

// lockDir opens path without locking it; only one writer process per data
// directory is supported on this platform.
func lockDir(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	return f, nil
}
