package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProductionEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, true).Info("envelope sent", "envelope_id", "e-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "envelope sent", line["msg"])
	assert.Equal(t, "signature-service", line["service"])
	assert.Equal(t, "e-1", line["envelope_id"])
}

func TestNewWithWriter_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, false).Debug("relay tick")
	assert.Contains(t, buf.String(), "relay tick")
}
