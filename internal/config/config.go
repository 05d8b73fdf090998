// Package config loads the immutable Config value consumed by every
// subsystem, following the teacher's envconfig-driven approach
// (memcached.Client's config struct + envconfig.Process), optionally
// overlaid on a TOML file named by the binary's positional argument.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Server holds the listener- and connection-driver-facing options of §6.
type Server struct {
	ListenAddr        string        `toml:"listen_addr" envconfig:"SERVER_LISTEN_ADDR" default:"0.0.0.0:11211"`
	MaxConnections    int           `toml:"max_connections" envconfig:"SERVER_MAX_CONNECTIONS" default:"1024"`
	ReadBufferSize    int           `toml:"read_buffer_size" envconfig:"SERVER_READ_BUFFER_SIZE" default:"4096"`
	WriteBufferSize   int           `toml:"write_buffer_size" envconfig:"SERVER_WRITE_BUFFER_SIZE" default:"4096"`
	MaxLineLen        int           `toml:"max_line_len" envconfig:"SERVER_MAX_LINE_LEN" default:"8192"`
	MaxValueSize      int           `toml:"max_value_size" envconfig:"SERVER_MAX_VALUE_SIZE" default:"1048576"`
	DrainDeadlineSecs int           `toml:"drain_deadline_secs" envconfig:"SERVER_DRAIN_DEADLINE_SECS" default:"30"`
	IdleTimeout       time.Duration `toml:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT" default:"0"`
}

// Storage holds the LSM engine's tuning knobs.
type Storage struct {
	DBPath                 string `toml:"db_path" envconfig:"STORAGE_DB_PATH" default:"./data"`
	BlockCacheSize         int64  `toml:"block_cache_size" envconfig:"STORAGE_BLOCK_CACHE_SIZE" default:"67108864"`
	WriteBufferSize        int64  `toml:"write_buffer_size" envconfig:"STORAGE_WRITE_BUFFER_SIZE" default:"67108864"`
	MaxWriteBufferNumber   int    `toml:"max_write_buffer_number" envconfig:"STORAGE_MAX_WRITE_BUFFER_NUMBER" default:"3"`
	TargetFileSizeBase     int64  `toml:"target_file_size_base" envconfig:"STORAGE_TARGET_FILE_SIZE_BASE" default:"67108864"`
	MaxBackgroundJobs      int    `toml:"max_background_jobs" envconfig:"STORAGE_MAX_BACKGROUND_JOBS" default:"4"`
	EnableCompression      bool   `toml:"enable_compression" envconfig:"STORAGE_ENABLE_COMPRESSION" default:"true"`
	EnableTTLCompaction    bool   `toml:"enable_ttl_compaction" envconfig:"STORAGE_ENABLE_TTL_COMPACTION" default:"true"`
}

// Metrics holds the observability endpoint's options.
type Metrics struct {
	Enabled    bool   `toml:"enabled" envconfig:"METRICS_ENABLED" default:"true"`
	ListenAddr string `toml:"listen_addr" envconfig:"METRICS_LISTEN_ADDR" default:"0.0.0.0:9090"`
}

// Config is the immutable value supplied to every subsystem at startup.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	Metrics Metrics `toml:"metrics"`
}

// Load builds a Config: defaults, then an optional TOML file at path (if
// non-empty), then an environment-variable overlay — mirroring the
// teacher's env-first posture but letting a config file seed values the
// environment doesn't override, per §6 ("optional positional argument is
// a path to a configuration file... Environment variables override").
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return Config{}, fmt.Errorf("config: server env overlay: %w", err)
	}
	if err := envconfig.Process("", &cfg.Storage); err != nil {
		return Config{}, fmt.Errorf("config: storage env overlay: %w", err)
	}
	if err := envconfig.Process("", &cfg.Metrics); err != nil {
		return Config{}, fmt.Errorf("config: metrics env overlay: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("config: server.max_connections must be >= 1")
	}
	if c.Server.DrainDeadlineSecs < 0 {
		return fmt.Errorf("config: server.drain_deadline_secs must be >= 0")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("config: storage.db_path is required")
	}
	return nil
}
