package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandlerWritesAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelInfo))

	logger.With("session_id", 3).Info("session started", "quiz_id", "quiz-1")
	logger.Debug("hidden")
	logger.WithGroup("req").Warn("slow", "ms", 250)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO: session started session_id=3 quiz_id=quiz-1")
	assert.Contains(t, lines[1], "WARN: slow req.ms=250")
}

func TestColorHandlerGroupsApplyFromTheirPosition(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelInfo))

	logger.With("session_id", 3).WithGroup("ws").Info("send", "kind", "state")
	logger.WithGroup("ws").With("player_id", 7).Info("recv", "kind", "answer")
	logger.WithGroup("http").WithGroup("req").Info("done", slog.Group("resp", "status", 200))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INFO: send session_id=3 ws.kind=state")
	assert.Contains(t, lines[1], "INFO: recv ws.player_id=7 ws.kind=answer")
	assert.Contains(t, lines[2], "INFO: done http.req.resp.status=200")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug("transition", "from", "LOBBY")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "transition", rec["msg"])
	assert.Equal(t, "LOBBY", rec["from"])
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
