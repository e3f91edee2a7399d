package logger

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	l.Info("reading %s stored", "123")
	l.Warning("slow model")
	l.Error("boom: %d", 7)

	info, err := os.ReadFile(l.Path(LevelInfo))
	require.NoError(t, err)
	assert.Contains(t, string(info), "reading 123 stored")
	assert.Contains(t, string(info), "logger_test.go")
	assert.NotContains(t, string(info), "boom")

	errs, err := os.ReadFile(l.Path(LevelError))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "boom: 7")
}

func TestLogger_CleanLogs(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	l.Warning("first")
	require.NoError(t, l.CleanLogs(LevelWarning))

	data, err := os.ReadFile(l.Path(LevelWarning))
	require.NoError(t, err)
	assert.Empty(t, data)

	l.Warning("second")
	data, err = os.ReadFile(l.Path(LevelWarning))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "second"))
}

func TestLogger_AccessWriter(t *testing.T) {
	l, err := New(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	_, err = l.AccessWriter().Write([]byte("GET /history-page 200\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(l.Path(LevelInfo))
	require.NoError(t, err)
	assert.Contains(t, string(data), "GET /history-page 200")
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, "warning.log", lvl.FileName())

	_, ok = ParseLevel("debug")
	assert.False(t, ok)
}
