package bridgecfg

import (
	"errors"
	"fmt"
)

// ErrCommandEmpty is returned by Validate when ChildConfig.Command is blank.
var ErrCommandEmpty = errors.New("bridgecfg: command must not be empty")

// ErrPortRestricted is returned by Validate when a non-zero port below
// 1024 is configured; such ports are reserved by the OS and the bridge
// refuses to even attempt a bind.
var ErrPortRestricted = errors.New("bridgecfg: port is a restricted system port")

// Tool is the flattened shape of one entry from the child's tools/list
// response: name required, description defaulting to empty, and its
// input schema's top-level properties reduced to a name→type map.
type Tool struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Params      map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// ChildConfig describes one child process to bridge and the HTTP endpoint
// it should be exposed on.
type ChildConfig struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Command  string            `json:"command" yaml:"command"`
	Args     []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir      string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int               `json:"port" yaml:"port"`
	Token    string            `json:"token,omitempty" yaml:"token,omitempty"`
	Tools    []Tool            `json:"tools,omitempty" yaml:"tools,omitempty"`
	Disabled []string          `json:"disabledTools,omitempty" yaml:"disabledTools,omitempty"`
}

// Validate checks the invariants spec'd on ChildConfig: a non-empty
// command and a port that is either 0 (ephemeral) or >= 1024.
func (c *ChildConfig) Validate() error {
	if c.Command == "" {
		return ErrCommandEmpty
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("bridgecfg: port %d out of range", c.Port)
	}
	if c.Port > 0 && c.Port < 1024 {
		return ErrPortRestricted
	}
	return nil
}

// BindHost returns the host to listen on, defaulting to loopback-only.
func (c *ChildConfig) BindHost() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

// HasTools reports whether a tool set has already been cached on the
// config, which suppresses the automatic discovery handshake on start.
func (c *ChildConfig) HasTools() bool {
	return len(c.Tools) > 0
}

// ToolDisabled reports whether name has been disabled by configuration.
func (c *ChildConfig) ToolDisabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
