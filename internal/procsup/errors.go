package procsup

import "errors"

// ErrCommandNotFound is returned by Spawn when no candidate executable
// could be resolved for the configured command token.
var ErrCommandNotFound = errors.New("procsup: command not found")

// ErrSpawnFailed wraps the underlying OS error when exec.Start fails for a
// resolved executable.
var ErrSpawnFailed = errors.New("procsup: spawn failed")
