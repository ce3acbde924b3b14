package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envTestConfig struct {
	Port      int           `env:"CALCULATOR_TEST_PORT" envDefault:"123"`
	Heartbeat time.Duration `env:"CALCULATOR_TEST_HEARTBEAT" envDefault:"15s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 123, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.Heartbeat)
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CALCULATOR_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestParseEnvWithLookupIgnoresProcessEnv(t *testing.T) {
	t.Setenv("CALCULATOR_TEST_PORT", "999")
	var cfg envTestConfig

	require.NoError(t, ParseEnvWithLookup(&cfg, map[string]string{"CALCULATOR_TEST_HEARTBEAT": "2s"}))
	assert.Equal(t, 123, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Heartbeat)
}

func TestEnvironIncludesProcessEnv(t *testing.T) {
	t.Setenv("CALCULATOR_TEST_PORT", "456")

	assert.Equal(t, "456", Environ()["CALCULATOR_TEST_PORT"])
}

func TestMergeEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calculator.env")
	require.NoError(t, os.WriteFile(path, []byte("CALCULATOR_TEST_PORT=8000\nCALCULATOR_TEST_HEARTBEAT=5s\n"), 0o600))

	merged, err := MergeEnvFile(path, map[string]string{"CALCULATOR_TEST_PORT": "9000"})
	require.NoError(t, err)

	var cfg envTestConfig
	require.NoError(t, ParseEnvWithLookup(&cfg, merged))
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat)
}

func TestMergeEnvFileMissing(t *testing.T) {
	_, err := MergeEnvFile(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read env file")
}
