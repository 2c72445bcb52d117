package bridgecfg

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a list of ChildConfig records from path, choosing JSON or
// YAML by file extension. This is a convenience for the standalone daemon
// binary only; the core itself never touches disk, taking its
// []ChildConfig as an in-memory handoff (spec.md §6, "Config persistence
// layout").
func Load(path string) ([]ChildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridgecfg: read %s: %w", path, err)
	}

	var configs []ChildConfig
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &configs); err != nil {
			return nil, fmt.Errorf("bridgecfg: parse yaml %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, &configs); err != nil {
			return nil, fmt.Errorf("bridgecfg: parse json %s: %w", path, err)
		}
	}

	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("bridgecfg: %s: %w", configs[i].ID, err)
		}
	}
	return configs, nil
}

func isYAML(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
