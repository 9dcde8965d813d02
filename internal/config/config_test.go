package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.Server.APIBaseURL)
	assert.Equal(t, "ws://localhost:5000/ws", cfg.Server.SocketURL)
	assert.Equal(t, 50, cfg.Chat.PageSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Chat.TypingTimeout)
	assert.Equal(t, int64(5<<20), cfg.Chat.MaxUploadSize)
	assert.Equal(t, 5, cfg.Socket.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Socket.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Socket.ReconnectDelayMax)
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Chat.PageSize)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  api_base_url: http://chat.example.com/api
  socket_url: ws://chat.example.com/ws
chat:
  page_size: 25
  typing_timeout: 2s
socket:
  reconnect_attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://chat.example.com/api", cfg.Server.APIBaseURL)
	assert.Equal(t, "ws://chat.example.com/ws", cfg.Server.SocketURL)
	assert.Equal(t, 25, cfg.Chat.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Chat.TypingTimeout)
	assert.Equal(t, 3, cfg.Socket.ReconnectAttempts)

	// Unset keys still default
	assert.Equal(t, int64(5<<20), cfg.Chat.MaxUploadSize)
	assert.Equal(t, time.Second, cfg.Socket.ReconnectDelay)
}
