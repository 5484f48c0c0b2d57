package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/mocks"
	"github.com/benmeehan/rendezvous-agent/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
feed:
  source: static
  static_latitude: 37.0
  static_longitude: -122.0
`)

	cfg, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "location", cfg.Store.Collection)
	assert.Equal(t, "User1", cfg.Store.SelfKey)
	assert.Equal(t, "User2", cfg.Store.PeerKey)
	assert.Equal(t, 5*time.Second, cfg.Tracking.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Feed.Interval)
	assert.Equal(t, 10*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, 2, cfg.Routing.Workers)
	assert.Equal(t, "/ws", cfg.Presentation.Websocket.Path)
	assert.False(t, cfg.UsesMQTT())
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"), file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "gps", cfg.Feed.Source)
	assert.Equal(t, 9600, cfg.Feed.GPSDeviceBaudRate)
	assert.True(t, cfg.Presentation.Websocket.Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "store:\n  backend: firestore\nfeed:\n  source: static\n"},
		{"same actor keys", "store:\n  backend: memory\n  self_key: A\n  peer_key: A\nfeed:\n  source: static\n"},
		{"mqtt without broker", "store:\n  backend: mqtt\nfeed:\n  source: static\n"},
		{"redis without addr", "store:\n  backend: redis\nfeed:\n  source: static\n"},
		{"routing without key", "store:\n  backend: memory\nrouting:\n  enabled: true\nfeed:\n  source: static\n"},
		{"gps without port", "store:\n  backend: memory\nfeed:\n  source: gps\n"},
		{"static out of range", "store:\n  backend: memory\nfeed:\n  source: static\n  static_latitude: 95\n"},
		{"negative poll interval", "store:\n  backend: memory\nfeed:\n  source: static\ntracking:\n  poll_interval: -5s\n"},
		{"negative feed interval", "store:\n  backend: memory\nfeed:\n  source: static\n  interval: -1s\n"},
		{"negative status interval", "store:\n  backend: memory\nfeed:\n  source: static\nservices:\n  status:\n    interval: -30s\n"},
		{"negative routing timeout", "store:\n  backend: memory\nfeed:\n  source: static\nrouting:\n  timeout: -1s\n"},
		{"unknown field", "store:\n  backend: memory\n  colour: red\nfeed:\n  source: static\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body), file.NewFileService())
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadConfig_PropagatesReadError(t *testing.T) {
	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadYamlFile", "agent.yaml", mock.Anything).Return(errors.New("permission denied")).Once()

	_, err := LoadConfig("agent.yaml", fileClient)
	assert.ErrorContains(t, err, "permission denied")
	fileClient.AssertExpectations(t)
}
