package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrNop(t *testing.T) {
	var nilLogger *entryLogger
	assert.True(t, IsNil(nilLogger))
	assert.NotNil(t, OrNop(nilLogger))
	assert.False(t, IsNil(Nop()))
}

func TestComponentLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure(Options{Level: "debug", Format: "json", Out: &buf}))
	t.Cleanup(func() { _ = Configure(Options{}) })

	logger := WithField(NewComponentLogger("media"), "meme_id", "abc")
	logger.Warn("old asset %s left behind", "memes/x")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "media", line["component"])
	assert.Equal(t, "abc", line["meme_id"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "old asset memes/x left behind", line["msg"])
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Configure(Options{Level: "loud"}))
	_ = Configure(Options{})
}
