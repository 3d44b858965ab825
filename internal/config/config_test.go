package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFiles_Defaults(t *testing.T) {
	cfg, err := loadFiles(nil)
	require.NoError(t, err)

	assert.Equal(t, 22050, cfg.Engine.SampleRate)
	assert.InDelta(t, 0.45, cfg.Engine.Amplitude, 1e-9)
	assert.Equal(t, 4096, cfg.Engine.ChunkSize)
	assert.Equal(t, 2048, cfg.Engine.CacheCap)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Audio.PlayerCommand)
}

func TestLoadFiles_ReadsToml(t *testing.T) {
	content := `
[engine]
sample_rate = 44100
amplitude = 0.6

[audio]
player_command = "ffplay"

[log]
level = "debug"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadFiles([]string{path})
	require.NoError(t, err)

	assert.Equal(t, 44100, cfg.Engine.SampleRate)
	assert.InDelta(t, 0.6, cfg.Engine.Amplitude, 1e-9)
	// Unset keys still get defaults.
	assert.Equal(t, 4096, cfg.Engine.ChunkSize)
	assert.Equal(t, "ffplay", cfg.Audio.PlayerCommand)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFiles_LastFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.toml")
	second := filepath.Join(dir, "second.toml")
	require.NoError(t, os.WriteFile(first, []byte("[engine]\nsample_rate = 8000\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("[engine]\nsample_rate = 48000\n"), 0o644))

	cfg, err := loadFiles([]string{first, second})
	require.NoError(t, err)

	assert.Equal(t, 48000, cfg.Engine.SampleRate)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	assert.Equal(t, filepath.Join(home, "logs", "arpeggio.log"), expandPath("~/logs/arpeggio.log"))
	assert.Equal(t, "/var/log/arpeggio.log", expandPath("/var/log/arpeggio.log"))
	assert.Equal(t, "", expandPath(""))
}
