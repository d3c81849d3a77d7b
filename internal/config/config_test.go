package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PLUS_NODE_URL", "PLUS_APP_URL", "PLUS_IDENTITY_URL", "PLUS_STATE_DIR",
		"PLUS_STATE_BACKEND", "PLUS_BRIDGE_ADDR", "PLUS_HTTP_TIMEOUT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLUS_STATE_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://bitclout.com", cfg.NodeURL)
	assert.Equal(t, "https://bitclout.com", cfg.AppURL)
	assert.Empty(t, cfg.IdentityURL)
	assert.Equal(t, BackendFile, cfg.StateBackend)
	assert.Equal(t, "127.0.0.1:0", cfg.BridgeAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestLoad_EnvironmentAndDotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("PLUS_NODE_URL=https://node.example.com/\nPLUS_APP_URL=https://from-file.example.com\n"), 0o600))
	t.Setenv("PLUS_APP_URL", "https://app.example.com")
	t.Setenv("PLUS_STATE_BACKEND", "keyring")
	t.Setenv("PLUS_HTTP_TIMEOUT", "5s")
	t.Setenv("PLUS_STATE_DIR", dir)

	cfg, err := Load(dotenv)
	require.NoError(t, err)
	assert.Equal(t, "https://node.example.com", cfg.NodeURL)
	assert.Equal(t, "https://app.example.com", cfg.AppURL)
	assert.Equal(t, BackendKeyring, cfg.StateBackend)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, dir, cfg.StateDir)
}

func TestLoad_MissingDotenvIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLUS_STATE_DIR", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		errMsg string
	}{
		{"unknown backend", "PLUS_STATE_BACKEND", "sqlite", "unsupported state backend"},
		{"bad duration", "PLUS_HTTP_TIMEOUT", "soon", "failed to parse environment"},
		{"negative timeout", "PLUS_HTTP_TIMEOUT", "-1s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PLUS_STATE_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStateDir(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		name    string
		goos    string
		vars    map[string]string
		want    string
		wantErr bool
	}{
		{"darwin", "darwin", nil, filepath.Join("/home/u", "Library", "Application Support", appDirName), false},
		{"linux", "linux", nil, filepath.Join("/home/u", ".config", appDirName), false},
		{"linux xdg", "linux", map[string]string{"XDG_CONFIG_HOME": "/xdg"}, filepath.Join("/xdg", appDirName), false},
		{"windows appdata", "windows", map[string]string{"APPDATA": `C:\AppData`}, filepath.Join(`C:\AppData`, appDirName), false},
		{"windows fallback", "windows", nil, filepath.Join("/home/u", "AppData", "Roaming", appDirName), false},
		{"plan9", "plan9", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stateDir(tt.goos, "/home/u", env(tt.vars))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
