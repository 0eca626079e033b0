package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadDefaults(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()
	assert.Equal(t, ":4000", cfg.EndpointAddr)
	assert.Equal(t, "db.json", cfg.DBFile)
	assert.Equal(t, "http://localhost:3000", cfg.AllowedOrigin)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	withArgs(t, "-a", ":9999", "-f", "board.json")

	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.EndpointAddr)
	assert.Equal(t, "board.json", cfg.DBFile)
	assert.Equal(t, "http://localhost:3000", cfg.AllowedOrigin)
}

func TestJsonOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	raw, err := json.Marshal(JsonConfig{EndpointAddr: ":5001", AllowedOrigin: "https://board.example"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	withArgs(t, "-c", path)

	cfg := LoadConfig()
	assert.Equal(t, ":5001", cfg.EndpointAddr)
	assert.Equal(t, "https://board.example", cfg.AllowedOrigin)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "db.json", cfg.DBFile)
}

func TestFlagsBeatJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	raw, err := json.Marshal(JsonConfig{EndpointAddr: ":5001"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	withArgs(t, "-c", path, "-a", ":6001")

	cfg := LoadConfig()
	assert.Equal(t, ":6001", cfg.EndpointAddr)
}
