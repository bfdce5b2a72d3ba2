package logging

import (
	"os"
	"path/filepath"
	"testing"

	"trackbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() config.AppConfig {
	return config.AppConfig{Name: "trackbook", Environment: "test", Version: "dev"}
}

func TestNew(t *testing.T) {
	t.Run("DefaultsToInfoStdout", func(t *testing.T) {
		logger, closer, err := New(config.LoggingConfig{}, testApp())
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("ParsesLevel", func(t *testing.T) {
		logger, _, err := New(config.LoggingConfig{Level: "DEBUG"}, testApp())
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("InvalidLevelFallsBackToInfo", func(t *testing.T) {
		logger, _, err := New(config.LoggingConfig{Level: "loud"}, testApp())
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		logger, _, err := New(config.LoggingConfig{Format: "console", Output: "stderr"}, testApp())
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("FileOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		logger, closer, err := New(config.LoggingConfig{Output: "file", FilePath: path}, testApp())
		require.NoError(t, err)
		require.NotNil(t, closer)

		logger.Info().Msg("hello")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"app":"trackbook"`)
		assert.Contains(t, string(data), "hello")
	})

	t.Run("FileOutputRequiresPath", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Output: "file"}, testApp())
		assert.Error(t, err)
	})
}
