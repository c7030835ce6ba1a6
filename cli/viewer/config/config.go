package config

/*
Описание конфигурационного файла просмотрщика (YAML), см. configs/viewer.example.yaml.
*/

import (
	"fmt"
	"os"
	"time"

	"github.com/daniil11ru/airtrack/cli/viewer/surface"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	DefaultEndpoint  = "ws://127.0.0.1:8081/events"
	DefaultMapListen = "127.0.0.1:8082"

	DefaultStatusSchedule = "@every 1m"
)

type Reconnect struct {
	MaxAttempts      int `yaml:"max_attempts" validate:"gte=0"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" validate:"gte=0"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" validate:"gte=0"`
}

type Map struct {
	Listen string       `yaml:"listen" validate:"required,hostname_port"`
	Icon   surface.Icon `yaml:"icon"`
}

type Settings struct {
	Endpoint       string                       `yaml:"endpoint" validate:"required,url"`
	LogLevel       string                       `yaml:"log_level"`
	LogFilePath    string                       `yaml:"log_file_path"`
	LogMaxAgeDays  int                          `yaml:"log_max_age_days" validate:"gte=0"`
	Reconnect      Reconnect                    `yaml:"reconnect"`
	Map            Map                          `yaml:"map"`
	MetricsAddr    string                       `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Store          map[string]map[string]string `yaml:"storage"`
	PublishWorkers int                          `yaml:"publish_workers" validate:"gte=0"`
	PublishBuffer  int                          `yaml:"publish_buffer" validate:"gte=0"`
	StatusSchedule string                       `yaml:"status_schedule"`
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func (s *Settings) GetInitialBackoff() time.Duration {
	return time.Duration(s.Reconnect.InitialBackoffMs) * time.Millisecond
}

func (s *Settings) GetMaxBackoff() time.Duration {
	return time.Duration(s.Reconnect.MaxBackoffMs) * time.Millisecond
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	if err = yaml.UnmarshalStrict(data, &c); err != nil {
		return c, err
	}

	applyDefaults(&c)

	if err = validator.New().Struct(c); err != nil {
		return c, fmt.Errorf("некорректный конфиг: %w", err)
	}

	return c, nil
}

func applyDefaults(c *Settings) {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 30
	}
	if c.Map.Listen == "" {
		c.Map.Listen = DefaultMapListen
	}
	if c.Map.Icon.URL == "" {
		c.Map.Icon = surface.DefaultIcon()
	}
	if c.StatusSchedule == "" {
		c.StatusSchedule = DefaultStatusSchedule
	}
	if c.PublishBuffer == 0 {
		c.PublishBuffer = 1024
	}
	if c.Reconnect.MaxAttempts > 0 && c.Reconnect.InitialBackoffMs == 0 {
		c.Reconnect.InitialBackoffMs = 1000
	}
	if c.Reconnect.MaxAttempts > 0 && c.Reconnect.MaxBackoffMs == 0 {
		c.Reconnect.MaxBackoffMs = 30000
	}
}
