// Package config loads scandb settings from defaults, an optional config
// file, SCANDB_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCANDB_DWELL.
const EnvPrefix = "SCANDB"

// FileName is the config file looked up in the data directory.
const FileName = "scandb"

// Keys.
const (
	KeyDataDir       = "data_dir"
	KeyDwell         = "dwell"
	KeySymbology     = "symbology"
	KeyTone          = "tone"
	KeySource        = "source"
	KeyCommand       = "command"
	KeyInboxDir      = "inbox.dir"
	KeyControlPrefix = "control_prefix"
	KeyExportTarget  = "export.target"
	KeyExportDir     = "export.dir"
	KeyLogFile       = "log.file"
	KeyLogMaxSize    = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAge     = "log.max_age_days"
	KeyVerbose       = "log.verbose"
)

// Capture sources.
const (
	SourceStdin   = "stdin"
	SourceCommand = "command"
	SourceInbox   = "inbox"
)

// Export targets.
const (
	TargetDir  = "dir"
	TargetOpen = "open"
)

// Config is the resolved configuration.
type Config struct {
	DataDir       string
	Dwell         time.Duration
	Symbology     string
	Tone          string
	Source        string
	Command       string
	ControlPrefix string
	Inbox         Inbox
	Export        Export
	Log           Log
}

// Inbox configures the inbox capture source.
type Inbox struct {
	Dir string `toml:"dir"`
}

// Export configures where exports go.
type Export struct {
	Target string `toml:"target"`
	Dir    string `toml:"dir"`
}

// Log configures the rotating log file.
type Log struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Verbose    bool   `toml:"verbose"`
}

// DBPath returns the location of the code store.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "SQLite", "barcodes.db")
}

// DefaultDataDir is the per-user data directory.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "scandb")
}

// DefaultExportDir is where exports land when no directory is configured.
func DefaultExportDir() string {
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	return filepath.Join(xdg.Home, "Downloads")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		Dwell:         2000 * time.Millisecond,
		Symbology:     "datamatrix",
		Tone:          "bell",
		Source:        SourceStdin,
		Command:       "zbarcam --raw --prescale=640x480",
		ControlPrefix: ":",
		Export: Export{
			Target: TargetDir,
			Dir:    DefaultExportDir(),
		},
		Log: Log{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyDwell, d.Dwell)
	v.SetDefault(KeySymbology, d.Symbology)
	v.SetDefault(KeyTone, d.Tone)
	v.SetDefault(KeySource, d.Source)
	v.SetDefault(KeyCommand, d.Command)
	v.SetDefault(KeyInboxDir, d.Inbox.Dir)
	v.SetDefault(KeyControlPrefix, d.ControlPrefix)
	v.SetDefault(KeyExportTarget, d.Export.Target)
	v.SetDefault(KeyExportDir, d.Export.Dir)
	v.SetDefault(KeyLogFile, d.Log.File)
	v.SetDefault(KeyLogMaxSize, d.Log.MaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, d.Log.MaxBackups)
	v.SetDefault(KeyLogMaxAge, d.Log.MaxAgeDays)
	v.SetDefault(KeyVerbose, d.Log.Verbose)
}

// ReadFile loads path, or when path is empty the scandb.{toml,yaml,json}
// file in the data directory if one exists. It returns the file used, or
// "" when none was found.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return path, nil
	}

	v.SetConfigName(FileName)
	v.AddConfigPath(v.GetString(KeyDataDir))
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, "scandb"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load resolves the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		DataDir:       v.GetString(KeyDataDir),
		Dwell:         v.GetDuration(KeyDwell),
		Symbology:     v.GetString(KeySymbology),
		Tone:          v.GetString(KeyTone),
		Source:        v.GetString(KeySource),
		Command:       v.GetString(KeyCommand),
		ControlPrefix: v.GetString(KeyControlPrefix),
		Inbox:         Inbox{Dir: v.GetString(KeyInboxDir)},
		Export: Export{
			Target: v.GetString(KeyExportTarget),
			Dir:    v.GetString(KeyExportDir),
		},
		Log: Log{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSize),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAge),
			Verbose:    v.GetBool(KeyVerbose),
		},
	}

	if c.Inbox.Dir == "" {
		c.Inbox.Dir = filepath.Join(c.DataDir, "inbox")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.DataDir, "scandb.log")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that cannot be repaired with a default.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%s cannot be empty", KeyDataDir)
	}
	if c.Dwell <= 0 {
		return fmt.Errorf("%s must be positive, got %v", KeyDwell, c.Dwell)
	}
	switch c.Source {
	case SourceStdin, SourceCommand, SourceInbox:
	default:
		return fmt.Errorf("unknown %s %q (want %s, %s or %s)", KeySource, c.Source, SourceStdin, SourceCommand, SourceInbox)
	}
	if c.Source == SourceCommand && strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%s is required when %s is %q", KeyCommand, KeySource, SourceCommand)
	}
	switch c.Export.Target {
	case TargetDir, TargetOpen:
	default:
		return fmt.Errorf("unknown %s %q (want %s or %s)", KeyExportTarget, c.Export.Target, TargetDir, TargetOpen)
	}
	return nil
}

// fileConfig is the on-disk form; durations are written as strings.
type fileConfig struct {
	DataDir       string `toml:"data_dir"`
	Dwell         string `toml:"dwell"`
	Symbology     string `toml:"symbology"`
	Tone          string `toml:"tone"`
	Source        string `toml:"source"`
	Command       string `toml:"command"`
	ControlPrefix string `toml:"control_prefix"`
	Inbox         Inbox  `toml:"inbox"`
	Export        Export `toml:"export"`
	Log           Log    `toml:"log"`
}

// EncodeTOML renders c as a config file.
func EncodeTOML(c Config) ([]byte, error) {
	fc := fileConfig{
		DataDir:       c.DataDir,
		Dwell:         c.Dwell.String(),
		Symbology:     c.Symbology,
		Tone:          c.Tone,
		Source:        c.Source,
		Command:       c.Command,
		ControlPrefix: c.ControlPrefix,
		Inbox:         c.Inbox,
		Export:        c.Export,
		Log:           c.Log,
	}

	var buf bytes.Buffer
	buf.WriteString("# scandb configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(fc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes c to path as TOML. An existing file is only replaced
// when force is set.
func WriteFile(path string, c Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := EncodeTOML(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
