package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, hclog.Debug, ParseLevel("debug"))
	assert.Equal(t, hclog.Warn, ParseLevel("WARN"))
	assert.Equal(t, hclog.Info, ParseLevel(""))
	assert.Equal(t, hclog.Info, ParseLevel("verbose"))
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	Info("import finished", "records", 3)
	Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "import finished", entry["@message"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestSetLevelAffectsNamedLoggers(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	named := Named("feed")
	named.Debug("before")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	named.Debug("after")
	assert.Contains(t, buf.String(), "after")
	assert.Contains(t, buf.String(), "medialibrary.feed")
}
