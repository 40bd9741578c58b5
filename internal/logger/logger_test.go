package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.True(t, ValidFormat("JSON"))
	assert.False(t, ValidFormat("xml"))
}

func TestLLMDump(t *testing.T) {
	var buf bytes.Buffer
	SetLLMWriter(&buf)
	defer SetLLMWriter(nil)

	meta := LLMMeta{Trace: "t1", Provider: "openai:gpt-4o-mini", Kind: "week", User: "alice", GW: 3}
	LogLLMRequest(meta, "sys", "usr")
	LogLLMResponse(meta, `{"made": false}`)

	out := buf.String()
	assert.Contains(t, out, "[LLM][request][openai:gpt-4o-mini][week][alice][gw3]trace=t1")
	assert.Contains(t, out, "--- SYSTEM ---\nsys\n")
	assert.Contains(t, out, "--- RAW ---\n{\"made\": false}\n=====")

	SetLLMWriter(nil)
	LogLLMResponse(meta, "dropped")
	assert.NotContains(t, buf.String(), "dropped")
}
