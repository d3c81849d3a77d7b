package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "bitclout-plus"

// DefaultStateDir returns the per-user directory the file backend keeps its
// state in.
func DefaultStateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return stateDir(runtime.GOOS, homeDir, os.Getenv)
}

func stateDir(goos, homeDir string, getenv func(string) string) (string, error) {
	switch goos {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appDirName), nil
	case "linux", "freebsd", "openbsd":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		return filepath.Join(homeDir, ".config", appDirName), nil
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, appDirName), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}
