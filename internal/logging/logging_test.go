package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/AngelGarcia/Mistery/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.Config{Env: config.Production, LogLevel: "debug"}, &buf)
	require.NoError(t, err)

	l.WithField("session", "abc").Info("player joined")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["session"])
	assert.Equal(t, "player joined", entry["msg"])
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestDevelopmentLogsText(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.Config{Env: config.Development, LogLevel: "warn"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestBadLevel(t *testing.T) {
	_, err := New(config.Config{Env: config.Production, LogLevel: "chatty"})
	assert.Error(t, err)
}
