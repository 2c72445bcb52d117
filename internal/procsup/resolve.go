package procsup

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FallbackDirs is the fixed, ordered list of directories searched for a
// bare command name before falling back to a generic launcher.
var FallbackDirs = []string{"/usr/local/bin", "/usr/bin", "/bin", "/opt/homebrew/bin"}

func expandTilde(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// resolution describes how to launch the resolved command: either directly
// at Path, or via the "env" launcher with the original token as its first
// argument (letting env re-resolve PATH itself at process start).
type resolution struct {
	path       string
	viaEnv     bool
	envToken   string
}

// resolve implements the Child Supervisor's executable resolution, in
// order: literal path, fixed directory list, the current PATH, and finally
// the generic env launcher.
func resolve(token string) (resolution, error) {
	expanded := expandTilde(token)
	if strings.HasPrefix(expanded, "/") || strings.HasPrefix(expanded, ".") {
		if isExecutable(expanded) {
			abs, err := filepath.Abs(expanded)
			if err != nil {
				abs = expanded
			}
			return resolution{path: abs}, nil
		}
		return resolution{}, ErrCommandNotFound
	}

	for _, dir := range FallbackDirs {
		candidate := filepath.Join(dir, expanded)
		if isExecutable(candidate) {
			return resolution{path: candidate}, nil
		}
	}

	if found, err := exec.LookPath(expanded); err == nil {
		return resolution{path: found}, nil
	}

	if envPath, err := exec.LookPath("env"); err == nil {
		return resolution{path: envPath, viaEnv: true, envToken: expanded}, nil
	}

	return resolution{}, ErrCommandNotFound
}
