package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watzon/metronome/internal/config"
)

func TestLoadConfig_MalformedFilePropagates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metronome.yaml"), []byte("scheduler: [unclosed"), 0o644))
	t.Chdir(dir)

	// A broken config on the search path must fail the command, not get
	// logged away and replaced with defaults.
	_, err := loadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}
