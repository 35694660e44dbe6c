package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerolog_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "json", "debug").With("overlay")

	l.Warn("admission rejected",
		Int("live", 2),
		Float64("usage", 0.85),
		Duration("age", 5*time.Second),
		Err(errors.New("boom")),
		String("id", "abc"),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "admission rejected", got["message"])
	assert.Equal(t, "overlay", got["component"])
	assert.EqualValues(t, 2, got["live"])
	assert.InDelta(t, 0.85, got["usage"], 1e-9)
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, "abc", got["id"])
}

func TestZerolog_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "json", "warn")

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZerolog_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "json", "chatty")

	l.Debug("dropped")
	assert.Zero(t, buf.Len())
	l.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}
