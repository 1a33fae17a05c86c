package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level for %q", in)
	}
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, IsDevelopment(""))
	assert.True(t, IsDevelopment("dev"))
	assert.True(t, IsDevelopment("development"))
	assert.False(t, IsDevelopment("production"))
}

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewProduction(&buf)
	log.Info().Str("workspace_id", "ws1").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "ws1", line["workspace_id"])
	assert.Contains(t, line, "time")
}

func TestTokenPreview(t *testing.T) {
	assert.Equal(t, "eyJ0eX…abcdef", TokenPreview("eyJ0eXAiOiJKV1QiLCJhbGciabcdef"))
	assert.Equal(t, "***", TokenPreview("abc"))
	assert.Equal(t, "", TokenPreview(""))
}
