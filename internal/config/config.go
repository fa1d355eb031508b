// Package config loads the bot's configuration: an embedded CUE schema
// supplies defaults and constraints, an optional .cue or .yaml file and
// STUDYBOT_* environment variables supply values.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STUDYBOT_"

// Config is the decoded configuration.
type Config struct {
	Timezone    string            `json:"timezone" yaml:"timezone"`
	Focus       FocusConfig       `json:"focus" yaml:"focus"`
	Maintenance MaintenanceConfig `json:"maintenance" yaml:"maintenance"`
	Workers     int               `json:"workers" yaml:"workers"`
	Roster      RosterConfig      `json:"roster" yaml:"roster"`
	Sessions    SessionsConfig    `json:"sessions" yaml:"sessions"`
	Log         LogConfig         `json:"log" yaml:"log"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`

	loc *time.Location
}

type FocusConfig struct {
	MaxMinutes int `json:"maxMinutes" yaml:"maxMinutes"`
}

type MaintenanceConfig struct {
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`
}

type RosterConfig struct {
	Path string `json:"path" yaml:"path"`
}

type SessionsConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	RedisURL string `json:"redisURL" yaml:"redisURL"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// envVar binds an environment variable to a path in the schema.
type envVar struct {
	name  string
	path  []string
	isInt bool
}

var envVars = []envVar{
	{"TIMEZONE", []string{"timezone"}, false},
	{"FOCUS_MAX_MINUTES", []string{"focus", "maxMinutes"}, true},
	{"MAINTENANCE_HOUR", []string{"maintenance", "hour"}, true},
	{"MAINTENANCE_MINUTE", []string{"maintenance", "minute"}, true},
	{"WORKERS", []string{"workers"}, true},
	{"ROSTER_PATH", []string{"roster", "path"}, false},
	{"SESSIONS_BACKEND", []string{"sessions", "backend"}, false},
	{"REDIS_URL", []string{"sessions", "redisURL"}, false},
	{"LOG_LEVEL", []string{"log", "level"}, false},
	{"LOG_FORMAT", []string{"log", "format"}, false},
	{"METRICS_ADDR", []string{"metrics", "addr"}, false},
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Load("", func(string) (string, bool) { return "", false })
}

// Load reads path (empty for none) and applies environment overrides from
// lookup (nil for os.LookupEnv). The result is validated against the
// schema and its time zone resolved.
func Load(path string, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := map[string]any{}
	if path != "" {
		var err error
		values, err = readFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := applyEnv(values, lookup); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(values))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid config: timezone %q: %w", cfg.Timezone, err)
	}
	cfg.loc = loc
	return &cfg, nil
}

// readFile parses a .cue, .yaml or .yml file into plain values.
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	values := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("parse %s: %s", path, cueerrors.Details(err, nil))
		}
		if err := v.Decode(&values); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension (want .cue, .yaml or .yml)", path)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// applyEnv overlays environment overrides onto values.
func applyEnv(values map[string]any, lookup LookupFunc) error {
	var errs []error
	for _, ev := range envVars {
		raw, ok := lookup(EnvPrefix + ev.name)
		if !ok {
			continue
		}
		var val any = raw
		if ev.isInt {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: not an integer: %q", EnvPrefix, ev.name, raw))
				continue
			}
			val = n
		}
		if err := setPath(values, ev.path, val); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, ev.name, err))
		}
	}
	return errors.Join(errs...)
}

func setPath(m map[string]any, path []string, val any) error {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key]
		if !ok {
			child := map[string]any{}
			m[key] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a struct", key)
		}
		m = child
	}
	m[path[len(path)-1]] = val
	return nil
}

// Location returns the resolved time zone.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// LogLevel returns the slog level named by Log.Level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
