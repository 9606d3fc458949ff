package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamcache.log")

	logger, closeFn, err := New(Options{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("sync cycle complete", zap.String("owner", "o1"), zap.Int("pushed", 3))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug entry must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "sync cycle complete", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "o1", entry["owner"])
	assert.EqualValues(t, 3, entry["pushed"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_DevelopmentDefaultsToDebug(t *testing.T) {
	logger, closeFn, err := New(Options{Development: true})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
