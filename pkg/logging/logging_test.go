package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscan/hostscan/pkg/config"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		verbosity  int
		verbose    bool
		want       zerolog.Level
	}{
		{"quiet default", "error", 0, false, zerolog.ErrorLevel},
		{"one v", "error", 1, false, zerolog.InfoLevel},
		{"two v", "error", 2, false, zerolog.DebugLevel},
		{"verbose wins", "error", 0, true, zerolog.DebugLevel},
		{"config more verbose", "debug", 1, false, zerolog.DebugLevel},
		{"config warn", "warn", 0, false, zerolog.WarnLevel},
		{"bad config", "loud", 0, false, zerolog.ErrorLevel},
		{"empty config", "", 1, false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.configured, tt.verbosity, tt.verbose))
		})
	}
}

func restoreLogger(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestSetup_JSON(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	closer, err := Setup(config.LogConfig{Format: "json"}, zerolog.InfoLevel, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Debug().Msg("hidden")
	log.Info().Str("component", "test").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "test", entry["component"])
}

func TestSetup_TextToFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "hostscan.log")
	closer, err := Setup(config.LogConfig{Format: "text", File: path}, zerolog.DebugLevel, &bytes.Buffer{})
	require.NoError(t, err)

	log.Debug().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.NotContains(t, string(data), "\x1b[", "file output has no colors")
}

func TestSetup_UnknownFormat(t *testing.T) {
	restoreLogger(t)
	closer, err := Setup(config.LogConfig{Format: "xml"}, zerolog.InfoLevel, &bytes.Buffer{})
	require.Error(t, err)
	require.NotNil(t, closer)
}
