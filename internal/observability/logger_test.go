// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cadence/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferSink adapts a bytes.Buffer to zapcore.WriteSyncer.
type bufferSink struct{ bytes.Buffer }

func (b *bufferSink) Sync() error { return nil }

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		buf := &bufferSink{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, buf)
		GetLogger().Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		buf := &bufferSink{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, buf)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("rotating log file", func(t *testing.T) {
		ResetForTest()
		logFile := filepath.Join(t.TempDir(), "cadence.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "json", LogFile: logFile, MaxSize: 1}, &bufferSink{})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("initializes only once", func(t *testing.T) {
		ResetForTest()
		buf := &bufferSink{}

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, buf)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, buf)

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestSetLevel(t *testing.T) {
	ResetForTest()
	buf := &bufferSink{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, buf)

	GetLogger().Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel(LevelFromSetting(2))
	assert.Equal(t, zapcore.DebugLevel, Level())
	GetLogger().Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestLevelFromSetting(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, LevelFromSetting(-1))
	assert.Equal(t, zapcore.WarnLevel, LevelFromSetting(0))
	assert.Equal(t, zapcore.InfoLevel, LevelFromSetting(1))
	assert.Equal(t, zapcore.DebugLevel, LevelFromSetting(5))
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	require.NotNil(t, GetLogger())
}
