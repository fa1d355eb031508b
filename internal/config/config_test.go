package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func env(pairs ...string) LookupFunc {
	m := map[string]string{}
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Singapore", cfg.Timezone)
	assert.Equal(t, "Asia/Singapore", cfg.Location().String())
	assert.Equal(t, 180, cfg.Focus.MaxMinutes)
	assert.Equal(t, MaintenanceConfig{Hour: 8, Minute: 0}, cfg.Maintenance)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "studybot.db", cfg.Roster.Path)
	assert.Equal(t, "memory", cfg.Sessions.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "bot.yaml", `
timezone: Europe/London
focus:
  maxMinutes: 90
maintenance:
  hour: 6
  minute: 30
log:
  level: debug
  format: json
`)
	cfg, err := Load(path, env())
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Location().String())
	assert.Equal(t, 90, cfg.Focus.MaxMinutes)
	assert.Equal(t, MaintenanceConfig{Hour: 6, Minute: 30}, cfg.Maintenance)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Workers, "unset fields keep defaults")
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "bot.cue", `
workers: 8
sessions: {
	backend:  "redis"
	redisURL: "redis://cache:6379/2"
}
roster: path: ""
`)
	cfg, err := Load(path, env())
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, SessionsConfig{Backend: "redis", RedisURL: "redis://cache:6379/2"}, cfg.Sessions)
	assert.Empty(t, cfg.Roster.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "bot.yaml", "focus:\n  maxMinutes: 90\nworkers: 2\n")

	cfg, err := Load(path, env(
		"STUDYBOT_FOCUS_MAX_MINUTES", "45",
		"STUDYBOT_METRICS_ADDR", ":9090",
		"STUDYBOT_MAINTENANCE_HOUR", "7",
	))
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Focus.MaxMinutes)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, 7, cfg.Maintenance.Hour)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		env     LookupFunc
		wantErr string
	}{
		{"focus too long", "a.yaml", "focus:\n  maxMinutes: 5000\n", env(), "maxMinutes"},
		{"zero focus", "a.yaml", "focus:\n  maxMinutes: 0\n", env(), "maxMinutes"},
		{"bad hour", "a.cue", "maintenance: hour: 24\n", env(), "hour"},
		{"unknown backend", "a.yaml", "sessions:\n  backend: etcd\n", env(), "backend"},
		{"unknown field", "a.yaml", "colour: blue\n", env(), "colour"},
		{"bad timezone", "a.yaml", "timezone: Mars/Olympus\n", env(), "timezone"},
		{"bad env int", "a.yaml", "", env("STUDYBOT_WORKERS", "many"), "STUDYBOT_WORKERS"},
		{"env out of range", "a.yaml", "", env("STUDYBOT_WORKERS", "0"), "workers"},
		{"wrong extension", "a.toml", "workers = 2\n", env(), "unsupported extension"},
		{"bad yaml", "a.yaml", "focus: [\n", env(), "parse"},
		{"bad cue", "a.cue", "workers: \n}", env(), "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := Load(path, tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), env())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg, err := Load("", env("STUDYBOT_LOG_LEVEL", "warn"))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "warn", back.Log.Level)
	assert.Equal(t, cfg.Focus, back.Focus)

	path := writeFile(t, "again.yaml", string(out))
	again, err := Load(path, env())
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, again.LogLevel())
}
