// Package config holds the settings of the rxdemo programs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scheduler names accepted in the scheduler key.
const (
	SchedulerNewThread = "new_thread"
	SchedulerPool      = "pool"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config 演示程序的配置。YAML 中的时长使用 Go 的格式，如 "1s"、"250ms"
type Config struct {
	Interval       time.Duration `yaml:"interval"`
	TimerDelay     time.Duration `yaml:"timer_delay"`
	TimerPeriod    time.Duration `yaml:"timer_period"`
	BufferSize     int           `yaml:"buffer_size"`
	BufferTimespan time.Duration `yaml:"buffer_timespan"`
	EmailCount     int           `yaml:"email_count"`
	RunFor         time.Duration `yaml:"run_for"`
	SubscribeAfter time.Duration `yaml:"subscribe_after"`
	Scheduler      string        `yaml:"scheduler"`
	Workers        int           `yaml:"workers"`
}

// Default 返回默认配置
func Default() Config {
	return Config{
		Interval:       time.Second,
		TimerDelay:     5 * time.Second,
		TimerPeriod:    time.Second,
		BufferSize:     1000,
		BufferTimespan: time.Second,
		EmailCount:     100000,
		RunFor:         10 * time.Second,
		SubscribeAfter: 3 * time.Second,
		Scheduler:      SchedulerNewThread,
	}
}

// Load 读取 YAML 文件，文件中未出现的键保留默认值
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML 解析 YAML 数据。未知的键视为错误
func FromYAML(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate 检查配置是否可以构造出合法的管道
func (c Config) Validate() error {
	var errs []error

	positive := []struct {
		key   string
		value time.Duration
	}{
		{"interval", c.Interval},
		{"timer_period", c.TimerPeriod},
		{"buffer_timespan", c.BufferTimespan},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, p.key, p.value))
		}
	}

	nonNegative := []struct {
		key   string
		value time.Duration
	}{
		{"timer_delay", c.TimerDelay},
		{"run_for", c.RunFor},
		{"subscribe_after", c.SubscribeAfter},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalid, p.key, p.value))
		}
	}

	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: buffer_size must be positive, got %d", ErrInvalid, c.BufferSize))
	}
	if c.EmailCount < 0 {
		errs = append(errs, fmt.Errorf("%w: email_count must not be negative, got %d", ErrInvalid, c.EmailCount))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Workers))
	}

	switch c.Scheduler {
	case SchedulerNewThread, SchedulerPool:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown scheduler %q", ErrInvalid, c.Scheduler))
	}

	return errors.Join(errs...)
}
