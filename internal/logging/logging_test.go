package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	lg, cleanup, err := New(Config{Level: "debug", Format: FormatJSON, File: FileConfig{Filename: path, MaxSizeMB: 1}})
	require.NoError(t, err)

	lg.Debug("hello", zap.String("user", "alice"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"msg":"hello"`)
	assert.Contains(t, line, `"user":"alice"`)
	assert.Contains(t, line, `"level":"debug"`)
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	lg, cleanup, err := New(Config{Level: "WARN", Format: FormatConsole, File: FileConfig{Filename: path}})
	require.NoError(t, err)

	lg.Info("quiet")
	lg.Warn("loud")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "quiet"))
	assert.Contains(t, string(data), "loud")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(Config{Level: "chatty"})
	assert.Error(t, err)

	_, _, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	lg, cleanup, err := New(DefaultConfig())
	require.NoError(t, err)
	defer cleanup()
	assert.True(t, lg.Core().Enabled(zap.InfoLevel))
	assert.False(t, lg.Core().Enabled(zap.DebugLevel))
}
