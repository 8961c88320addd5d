// Package config loads settings from flags, environment and an optional
// config file, and watches that file for audio changes.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/results"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/vo2max"
)

// EnvPrefix prefixes every environment override, e.g. SHUTTLE_RUN_AUDIO_MODE.
const EnvPrefix = "SHUTTLE_RUN"

// ErrHelp is returned by Load when --help was requested.
var ErrHelp = pflag.ErrHelp

// Audio modes.
const (
	AudioCommand = "command"
	AudioBell    = "bell"
	AudioNone    = "none"
)

// MaxPlayers is the largest roster the scoreboard can lay out.
const MaxPlayers = 30

type AudioConfig struct {
	Mode          string
	Command       string
	CountdownClip string
	ShuttleClip   string
	LevelClip     string
	FinishClip    string
}

type ResultsConfig struct {
	Sinks      []string
	CSVPath    string
	JSONLPath  string
	SQLitePath string
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type HRMConfig struct {
	Enabled bool
	Mock    bool
	Devices map[string]string
}

type Config struct {
	ConfigFile     string
	Players        []string
	PlayerCount    int
	Countdown      time.Duration
	RenderInterval time.Duration
	Audio          AudioConfig
	Results        ResultsConfig
	HTTPAddr       string
	Log            LogConfig
	HRM            HRMConfig
	VO2maxMode     vo2max.Mode
}

// ResultsPaths converts the file settings for results.Open.
func (c Config) ResultsPaths() results.Paths {
	return results.Paths{CSV: c.Results.CSVPath, JSONL: c.Results.JSONLPath, SQLite: c.Results.SQLitePath}
}

// flag name -> viper key
var flagKeys = map[string]string{
	"players":         "players",
	"player-count":    "player_count",
	"countdown":       "countdown_seconds",
	"render-interval": "render_interval",
	"audio-mode":      "audio.mode",
	"audio-command":   "audio.command",
	"shuttle-clip":    "audio.shuttle_clip",
	"level-clip":      "audio.level_clip",
	"countdown-clip":  "audio.countdown_clip",
	"finish-clip":     "audio.finish_clip",
	"results":         "results.sinks",
	"csv":             "results.csv_path",
	"jsonl":           "results.jsonl_path",
	"sqlite":          "results.sqlite_path",
	"http":            "http.addr",
	"log-file":        "log.file",
	"hrm":             "hrm.enabled",
	"hrm-mock":        "hrm.mock",
	"vo2max-mode":     "vo2max.mode",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("shuttle-run", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (yaml, toml or json)")
	fs.StringSliceP("players", "p", nil, "player names, comma separated")
	fs.IntP("player-count", "n", 10, "number of players when no names are given")
	fs.Int("countdown", 10, "get-ready countdown in seconds")
	fs.Duration("render-interval", 100*time.Millisecond, "scoreboard refresh interval")
	fs.String("audio-mode", AudioBell, "audio cues: command, bell or none")
	fs.String("audio-command", "ffplay -nodisp -autoexit -loglevel quiet {file}", "player command; {file} is replaced by the clip path")
	fs.String("shuttle-clip", "beep.mp3", "clip played at every repetition")
	fs.String("level-clip", "", "clip played at a new level (defaults to the shuttle clip)")
	fs.String("countdown-clip", "", "clip played each countdown second")
	fs.String("finish-clip", "", "clip played when the test ends (defaults to the shuttle clip)")
	fs.StringSlice("results", []string{"memory", "csv"}, "result sinks: "+strings.Join(results.Names(), ", "))
	fs.String("csv", "results.csv", "CSV results file")
	fs.String("jsonl", "results.jsonl", "JSON lines results file")
	fs.String("sqlite", "results.db", "SQLite results database")
	fs.String("http", "", "scoreboard API listen address, e.g. :8080 (disabled when empty)")
	fs.String("log-file", "", "log file (default ~/.shuttle-run/shuttle-run.log)")
	fs.Bool("hrm", false, "connect BLE heart-rate monitors listed under hrm.devices")
	fs.Bool("hrm-mock", false, "simulate heart-rate monitors")
	fs.String("vo2max-mode", string(vo2max.ModeLinearLevel), "default VO2max formula: linear or leger1988")
	return fs
}

// Loader owns the viper instance and notifies hooks when the watched config
// file changes.
type Loader struct {
	v      *viper.Viper
	fs     *pflag.FlagSet
	logger *log.Logger

	mu      sync.RWMutex
	current Config
	changes *events.Hooks[Config]
}

func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		panic("Loader: logger cannot be nil")
	}
	return &Loader{
		v:       viper.New(),
		fs:      newFlagSet(),
		logger:  logger,
		changes: events.NewHooks[Config](),
	}
}

// Usage is the flag help text.
func (l *Loader) Usage() string {
	return l.fs.FlagUsages()
}

// Load parses args (without the program name) and merges, from highest
// priority: flags, SHUTTLE_RUN_* environment, config file, defaults.
func (l *Loader) Load(args []string) (Config, error) {
	l.fs.SetOutput(io.Discard)
	if err := l.fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := l.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, l.fs.Lookup(name)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("hrm.devices", map[string]string{})

	configFile, _ := l.fs.GetString("config")
	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigFile = configFile

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current is the last successfully loaded configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers fn for every valid reload of the config file.
func (l *Loader) OnChange(fn func(Config)) func() {
	return l.changes.Add(fn)
}

// Watch starts watching the config file, if one was loaded.
func (l *Loader) Watch() {
	if l.Current().ConfigFile == "" {
		return
	}
	l.v.OnConfigChange(l.reload)
	l.v.WatchConfig()
	l.logger.Printf("Config: Watching %s", l.Current().ConfigFile)
}

func (l *Loader) reload(e fsnotify.Event) {
	cfg, err := decode(l.v)
	if err != nil {
		l.logger.Printf("Config: Ignoring invalid change to %s: %v", e.Name, err)
		return
	}

	l.mu.Lock()
	cfg.ConfigFile = l.current.ConfigFile
	l.current = cfg
	l.mu.Unlock()

	l.logger.Printf("Config: Reloaded %s (%s)", e.Name, e.Op)
	l.changes.Fire(cfg)
}

func decode(v *viper.Viper) (Config, error) {
	mode, err := vo2max.ParseMode(v.GetString("vo2max.mode"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Players:        trimAll(v.GetStringSlice("players")),
		PlayerCount:    v.GetInt("player_count"),
		Countdown:      time.Duration(v.GetInt("countdown_seconds")) * time.Second,
		RenderInterval: v.GetDuration("render_interval"),
		Audio: AudioConfig{
			Mode:          strings.ToLower(strings.TrimSpace(v.GetString("audio.mode"))),
			Command:       v.GetString("audio.command"),
			CountdownClip: v.GetString("audio.countdown_clip"),
			ShuttleClip:   v.GetString("audio.shuttle_clip"),
			LevelClip:     v.GetString("audio.level_clip"),
			FinishClip:    v.GetString("audio.finish_clip"),
		},
		Results: ResultsConfig{
			Sinks:      trimAll(v.GetStringSlice("results.sinks")),
			CSVPath:    v.GetString("results.csv_path"),
			JSONLPath:  v.GetString("results.jsonl_path"),
			SQLitePath: v.GetString("results.sqlite_path"),
		},
		HTTPAddr: v.GetString("http.addr"),
		Log: LogConfig{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		HRM: HRMConfig{
			Enabled: v.GetBool("hrm.enabled"),
			Mock:    v.GetBool("hrm.mock"),
			Devices: v.GetStringMapString("hrm.devices"),
		},
		VO2maxMode: mode,
	}
	if len(cfg.Players) > 0 {
		cfg.PlayerCount = len(cfg.Players)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.PlayerCount < 1 || c.PlayerCount > MaxPlayers {
		errs = append(errs, fmt.Errorf("player count must be between 1 and %d, got %d", MaxPlayers, c.PlayerCount))
	}
	if c.Countdown < 0 {
		errs = append(errs, errors.New("countdown cannot be negative"))
	}
	if c.RenderInterval <= 0 {
		errs = append(errs, errors.New("render interval must be positive"))
	}
	switch c.Audio.Mode {
	case AudioCommand:
		if strings.TrimSpace(c.Audio.Command) == "" {
			errs = append(errs, fmt.Errorf("audio mode %q needs audio.command", AudioCommand))
		}
	case AudioBell, AudioNone:
	default:
		errs = append(errs, fmt.Errorf("unknown audio mode %q", c.Audio.Mode))
	}
	known := results.Names()
	for _, s := range c.Results.Sinks {
		if !slices.Contains(known, strings.ToLower(s)) {
			errs = append(errs, fmt.Errorf("%w: %s", results.ErrUnknownSink, s))
		}
	}
	if c.Log.MaxSizeMB <= 0 {
		errs = append(errs, errors.New("log.max_size_mb must be positive"))
	}
	return errors.Join(errs...)
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
