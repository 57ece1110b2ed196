package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/ledgerfs/internal/fsops"
)

// Undo store kinds.
const (
	StoreBadger = "badger"
	StoreJSON   = "json"
	StoreMemory = "memory"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the per-ledger YAML configuration.
type Config struct {
	// MaxBackups is the number of distinct backup dates retained. Zero
	// disables dated backups.
	MaxBackups int `yaml:"max_backups" json:"maxBackups"`

	// BackupUnchanged also snapshots governed files a save leaves unchanged.
	BackupUnchanged bool `yaml:"backup_unchanged" json:"backupUnchanged"`

	// UndoStore selects the undo and action log store.
	UndoStore string `yaml:"undo_store" json:"undoStore"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level" json:"logLevel"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		MaxBackups: 5,
		UndoStore:  StoreBadger,
		LogLevel:   "info",
	}
}

// Load reads the config at path over the defaults. A missing file yields the
// defaults.
func Load(fs fsops.FS, path string) (*Config, error) {
	cfg := Default()

	data, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path atomically.
func (c *Config) Save(fs fsops.FS, path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.MaxBackups < 0 {
		return fmt.Errorf("%w: max_backups must be >= 0, got %d", ErrInvalidConfig, c.MaxBackups)
	}
	switch c.UndoStore {
	case StoreBadger, StoreJSON, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown undo_store %q", ErrInvalidConfig, c.UndoStore)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}
