package config

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), "viewer-*.yaml")
	require.NoError(t, err)
	defer file.Close()

	_, err = file.WriteString(body)
	require.NoError(t, err)

	return file.Name()
}

func TestConfigLoad(t *testing.T) {
	log.SetOutput(io.Discard)

	cfg := `endpoint: "ws://10.0.0.5:8081/events"
log_level: "DEBUG"
log_file_path: "/var/log/viewer/viewer.log"
log_max_age_days: 7
reconnect:
  max_attempts: 5
  initial_backoff_ms: 500
  max_backoff_ms: 8000
map:
  listen: "0.0.0.0:9000"
  icon:
    url: "/img/jet.png"
    size: [24, 24]
    shadow_size: [24, 24]
    anchor: [12, 12]
    shadow_anchor: [10, 10]
    popup_anchor: [0, -24]
metrics_addr: "127.0.0.1:9100"
storage:
  redis:
    host: "localhost"
    port: "6379"
  nats:
    servers: "nats://localhost:4222"
    subject: "aircraft"
publish_workers: 2
publish_buffer: 64
status_schedule: "@every 30s"
`

	conf, err := New(writeConfig(t, cfg))
	require.NoError(t, err)

	assert.Equal(t, Settings{
		Endpoint:      "ws://10.0.0.5:8081/events",
		LogLevel:      "DEBUG",
		LogFilePath:   "/var/log/viewer/viewer.log",
		LogMaxAgeDays: 7,
		Reconnect: Reconnect{
			MaxAttempts:      5,
			InitialBackoffMs: 500,
			MaxBackoffMs:     8000,
		},
		Map: Map{
			Listen: "0.0.0.0:9000",
			Icon: surface.Icon{
				URL:          "/img/jet.png",
				Size:         surface.Point{X: 24, Y: 24},
				ShadowSize:   surface.Point{X: 24, Y: 24},
				Anchor:       surface.Point{X: 12, Y: 12},
				ShadowAnchor: surface.Point{X: 10, Y: 10},
				PopupAnchor:  surface.Point{X: 0, Y: -24},
			},
		},
		MetricsAddr: "127.0.0.1:9100",
		Store: map[string]map[string]string{
			"redis": {
				"host": "localhost",
				"port": "6379",
			},
			"nats": {
				"servers": "nats://localhost:4222",
				"subject": "aircraft",
			},
		},
		PublishWorkers: 2,
		PublishBuffer:  64,
		StatusSchedule: "@every 30s",
	}, conf)

	assert.Equal(t, 500*time.Millisecond, conf.GetInitialBackoff())
	assert.Equal(t, 8*time.Second, conf.GetMaxBackoff())
	assert.Equal(t, log.DebugLevel, conf.GetLogLevel())
}

func TestConfigDefaults(t *testing.T) {
	log.SetOutput(io.Discard)

	conf, err := New(writeConfig(t, "log_level: \"WARN\"\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, conf.Endpoint)
	assert.Equal(t, DefaultMapListen, conf.Map.Listen)
	assert.Equal(t, surface.DefaultIcon(), conf.Map.Icon)
	assert.Equal(t, 30, conf.LogMaxAgeDays)
	assert.Equal(t, 1024, conf.PublishBuffer)
	assert.Equal(t, DefaultStatusSchedule, conf.StatusSchedule)
	assert.Equal(t, 0, conf.Reconnect.MaxAttempts)
	assert.Equal(t, time.Duration(0), conf.GetInitialBackoff())
	assert.Empty(t, conf.Store)
}

func TestConfigReconnectDefaults(t *testing.T) {
	conf, err := New(writeConfig(t, "reconnect:\n  max_attempts: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, time.Second, conf.GetInitialBackoff())
	assert.Equal(t, 30*time.Second, conf.GetMaxBackoff())
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad endpoint", body: "endpoint: \"not a url\"\n"},
		{name: "bad listen", body: "map:\n  listen: \"nowhere\"\n"},
		{name: "negative attempts", body: "reconnect:\n  max_attempts: -1\n"},
		{name: "unknown key", body: "endpiont: \"ws://127.0.0.1:8081/events\"\n"},
		{name: "short point", body: "map:\n  icon:\n    url: \"/a.png\"\n    size: [1]\n"},
		{name: "not yaml", body: "endpoint: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfigMissingFile(t *testing.T) {
	_, err := New("/nonexistent/viewer.yaml")
	assert.Error(t, err)
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"DEBUG", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"WARN", log.WarnLevel},
		{"ERROR", log.ErrorLevel},
		{"", log.InfoLevel},
		{"verbose", log.InfoLevel},
	}

	for _, tt := range tests {
		s := Settings{LogLevel: tt.in}
		assert.Equal(t, tt.want, s.GetLogLevel(), tt.in)
	}
}
