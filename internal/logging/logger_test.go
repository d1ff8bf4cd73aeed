package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bookmyfaculty/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := New(
		config.LoggingConfig{Level: "debug", Output: "file", FilePath: path},
		config.AppConfig{Name: "bookmyfaculty", Environment: "test", Version: "0.0.1"},
	)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "bookmyfaculty", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "hello", line["message"])
}

func TestNew_FileSinkRequiresPath(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Output: "file"}, config.AppConfig{})
	assert.Error(t, err)
}

func TestNew_UnknownOutput(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Output: "syslog"}, config.AppConfig{})
	assert.Error(t, err)
}

func TestLevelOrInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, levelOrInfo(""))
	assert.Equal(t, zerolog.InfoLevel, levelOrInfo("loud"))
	assert.Equal(t, zerolog.DebugLevel, levelOrInfo("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, levelOrInfo(" warn "))
}
