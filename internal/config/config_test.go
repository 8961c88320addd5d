package config

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/results"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

func testLoader() *Loader {
	return NewLoader(log.New(io.Discard, "", 0))
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "shuttle-run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleConfig = `
players: [Ana, Ben, Cy]
countdown_seconds: 5
audio:
  mode: command
  command: "aplay -q {file}"
  shuttle_clip: beep.wav
  level_clip: level.wav
results:
  sinks: [memory, sqlite]
  sqlite_path: results.db
http:
  addr: ":9090"
hrm:
  mock: true
  devices:
    "1": "AA:BB:CC:DD:EE:01"
vo2max:
  mode: leger1988
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := testLoader().Load(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Players)
	assert.Equal(t, 10, cfg.PlayerCount)
	assert.Equal(t, 10*time.Second, cfg.Countdown)
	assert.Equal(t, 100*time.Millisecond, cfg.RenderInterval)
	assert.Equal(t, AudioBell, cfg.Audio.Mode)
	assert.Equal(t, "beep.mp3", cfg.Audio.ShuttleClip)
	assert.Equal(t, []string{"memory", "csv"}, cfg.Results.Sinks)
	assert.Equal(t, "results.csv", cfg.Results.CSVPath)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.Equal(t, vo2max.ModeLinearLevel, cfg.VO2maxMode)
	assert.False(t, cfg.HRM.Enabled)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := testLoader().Load([]string{
		"--players", "Ana, Ben",
		"--countdown", "0",
		"--render-interval", "50ms",
		"--results", "jsonl",
		"--http", "127.0.0.1:8080",
		"--hrm-mock",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana", "Ben"}, cfg.Players)
	assert.Equal(t, 2, cfg.PlayerCount)
	assert.Zero(t, cfg.Countdown)
	assert.Equal(t, 50*time.Millisecond, cfg.RenderInterval)
	assert.Equal(t, []string{"jsonl"}, cfg.Results.Sinks)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.True(t, cfg.HRM.Mock)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := testLoader().Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, []string{"Ana", "Ben", "Cy"}, cfg.Players)
	assert.Equal(t, 3, cfg.PlayerCount)
	assert.Equal(t, 5*time.Second, cfg.Countdown)
	assert.Equal(t, AudioCommand, cfg.Audio.Mode)
	assert.Equal(t, "aplay -q {file}", cfg.Audio.Command)
	assert.Equal(t, "level.wav", cfg.Audio.LevelClip)
	assert.Equal(t, []string{"memory", "sqlite"}, cfg.Results.Sinks)
	assert.Equal(t, results.Paths{CSV: "results.csv", JSONL: "results.jsonl", SQLite: "results.db"}, cfg.ResultsPaths())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.HRM.Mock)
	assert.Equal(t, map[string]string{"1": "AA:BB:CC:DD:EE:01"}, cfg.HRM.Devices)
	assert.Equal(t, vo2max.ModeLeger1988, cfg.VO2maxMode)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	t.Setenv("SHUTTLE_RUN_AUDIO_MODE", "none")
	t.Setenv("SHUTTLE_RUN_HTTP_ADDR", ":7070")

	cfg, err := testLoader().Load([]string{"--config", path, "--http", ":6060"})
	require.NoError(t, err)

	// env beats file, flag beats env
	assert.Equal(t, AudioNone, cfg.Audio.Mode)
	assert.Equal(t, ":6060", cfg.HTTPAddr)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)
	t.Setenv("SHUTTLE_RUN_CONFIG", path)

	cfg, err := testLoader().Load(nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 3, cfg.PlayerCount)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few players", []string{"--player-count", "0"}},
		{"too many players", []string{"--player-count", "31"}},
		{"negative countdown", []string{"--countdown", "-1"}},
		{"zero render interval", []string{"--render-interval", "0s"}},
		{"unknown audio mode", []string{"--audio-mode", "loud"}},
		{"command without command", []string{"--audio-mode", "command", "--audio-command", " "}},
		{"unknown vo2max mode", []string{"--vo2max-mode", "cooper"}},
		{"unknown flag", []string{"--nope"}},
		{"missing config file", []string{"--config", "/nonexistent/shuttle-run.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testLoader().Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnknownSink(t *testing.T) {
	t.Setenv("SHUTTLE_RUN_RESULTS_SINKS", "memory ftp")

	_, err := testLoader().Load(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, results.ErrUnknownSink)
}

func TestLoad_Help(t *testing.T) {
	l := testLoader()
	_, err := l.Load([]string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, l.Usage(), "--audio-mode")
}

func TestReload_FiresOnChange(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(log.New(&buf, "", 0))
	path := writeConfig(t, t.TempDir(), sampleConfig)
	_, err := l.Load([]string{"--config", path})
	require.NoError(t, err)

	var got []Config
	l.OnChange(func(c Config) { got = append(got, c) })

	writeConfig(t, filepath.Dir(path), "audio:\n  mode: bell\n")
	require.NoError(t, l.v.ReadInConfig())
	l.reload(fsnotify.Event{Name: path, Op: fsnotify.Write})

	require.Len(t, got, 1)
	assert.Equal(t, AudioBell, got[0].Audio.Mode)
	assert.Equal(t, path, got[0].ConfigFile)
	assert.Equal(t, AudioBell, l.Current().Audio.Mode)
	assert.Contains(t, buf.String(), "Config: Reloaded")
}

func TestReload_IgnoresInvalidChange(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(log.New(&buf, "", 0))
	path := writeConfig(t, t.TempDir(), sampleConfig)
	_, err := l.Load([]string{"--config", path})
	require.NoError(t, err)

	fired := false
	l.OnChange(func(Config) { fired = true })

	writeConfig(t, filepath.Dir(path), "audio:\n  mode: loud\n")
	require.NoError(t, l.v.ReadInConfig())
	l.reload(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.False(t, fired)
	assert.Equal(t, AudioCommand, l.Current().Audio.Mode)
	assert.Contains(t, buf.String(), "Ignoring invalid change")
}

func TestWatch_NoConfigFileIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoader(log.New(&buf, "", 0))
	_, err := l.Load(nil)
	require.NoError(t, err)

	l.Watch()
	assert.Empty(t, buf.String())
}

func TestNewLoader_PanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() { NewLoader(nil) })
}
