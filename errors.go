package mcproxy

import (
	"errors"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/AlickH/MCProxy/discovery"
	"github.com/AlickH/MCProxy/internal/procsup"
)

// The error kinds named in spec.md §7. CommandNotFound, SpawnFailed,
// PortRestricted and ValidateTimeout are re-exported from the packages
// where they actually originate rather than duplicated.
var (
	ErrCommandNotFound = procsup.ErrCommandNotFound
	ErrSpawnFailed     = procsup.ErrSpawnFailed
	ErrPortRestricted  = bridgecfg.ErrPortRestricted
	ErrValidateTimeout = discovery.ErrValidateTimeout

	ErrPortInUse       = errors.New("mcproxy: port already in use")
	ErrBindFailed      = errors.New("mcproxy: listener bind failed")
	ErrChildExited     = errors.New("mcproxy: child process exited")
	ErrNotRunning      = errors.New("mcproxy: instance is not running")
	ErrAlreadyRunning  = errors.New("mcproxy: instance is already running")
	ErrUnknownInstance = errors.New("mcproxy: no instance with that id")
)
