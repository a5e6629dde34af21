package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithOutput(t *testing.T) {
	t.Cleanup(func() { Setup("info", "text") })

	var buf bytes.Buffer
	SetupWithOutput(&buf, "warn", "json")
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	log.Info("dropped")
	log.WithField("session", "abc").Warn("[test] kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[test] kept", entry["msg"])
	assert.Equal(t, "abc", entry["session"])

	buf.Reset()
	SetupWithOutput(&buf, "loud", "text")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
