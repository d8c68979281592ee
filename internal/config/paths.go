package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ConfigDirectory returns the directory holding the config file, the
// file-backed session and the default log file.
//
// Locations:
//   - Windows: %USERPROFILE%\.config\faishion
//   - Unix: $XDG_CONFIG_HOME/faishion, falling back to ~/.config/faishion
func ConfigDirectory() (string, error) {
	if runtime.GOOS != "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, "faishion"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "faishion"), nil
}

// LogDirectory returns the directory for rotated log files.
func LogDirectory() string {
	dir, err := ConfigDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), "faishion-logs")
	}
	return filepath.Join(dir, "logs")
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
