package infra

import (
	"os"
	"path/filepath"
)

// ResolveConfigPath returns the config file to load: the FLIPBOT_CONFIG
// environment variable if set, otherwise config.yaml next to the binary's
// working directory.
func ResolveConfigPath() string {
	if p := os.Getenv("FLIPBOT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// EnsureDir creates the directory if it doesn't exist with safe permissions (0755).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// EnsureParentDir creates the parent directory of a file path.
func EnsureParentDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "." || dir == "" {
		return nil
	}
	return EnsureDir(dir)
}
