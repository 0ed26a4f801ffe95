package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)
	log.WithField("session_id", "s1").Debug("answer recorded")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "answer recorded", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "s1", line["session_id"])
	assert.Contains(t, line, "timestamp")
}

func TestConsoleLogger(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	log := New("info", "text", &buf)

	log.WithFields(logrus.Fields{"b": 2, "a": 1}).Info("started")
	log.Debug("hidden")

	assert.Contains(t, buf.String(), "INFO: started a=1 b=2\n")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New("chatty", "json", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
