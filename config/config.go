// Package config handles vmcodec.toml configuration.
package config

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/vmcodec/codec"
	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/storage"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "vmcodec.toml"

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the full vmcodec configuration.
type Config struct {
	Codec   Codec   `toml:"codec"`
	Storage Storage `toml:"storage"`
	Log     Log     `toml:"log"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

// Codec configures codec limits.
type Codec struct {
	MaxDepth        int    `toml:"max_depth"`
	MaxVectorLength uint32 `toml:"max_vector_length"`
}

// Storage configures module storage.
type Storage struct {
	Backend               string `toml:"backend"`
	SQLitePath            string `toml:"sqlite_path"`
	DeserializedCacheSize int    `toml:"deserialized_cache_size"`
	VerifiedCacheSize     int    `toml:"verified_cache_size"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Codec: Codec{
			MaxDepth:        codec.DefaultMaxDepth,
			MaxVectorLength: codec.DefaultMaxVectorLength,
		},
		Storage: Storage{
			Backend:               BackendMemory,
			DeserializedCacheSize: storage.DefaultDeserializedCacheSize,
			VerifiedCacheSize:     storage.DefaultVerifiedCacheSize,
		},
		Log: Log{Level: "info"},
	}
}

// Load parses the file at path over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, configError(err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, configError(nil, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if cfg.Storage.SQLitePath != "" && !filepath.IsAbs(cfg.Storage.SQLitePath) {
		cfg.Storage.SQLitePath = filepath.Join(filepath.Dir(path), cfg.Storage.SQLitePath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir looking for vmcodec.toml and loads the
// first one found. Without a file it returns Default().
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, configError(err, "resolve %s", startDir)
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.Codec.MaxDepth < 1 {
		return configError(nil, "codec.max_depth must be positive, got %d", c.Codec.MaxDepth)
	}
	if c.Codec.MaxVectorLength == 0 {
		return configError(nil, "codec.max_vector_length must be positive")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return configError(nil, "storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return configError(nil, "unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.DeserializedCacheSize < 1 || c.Storage.VerifiedCacheSize < 1 {
		return configError(nil, "storage cache sizes must be positive")
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return configError(err, "log.level")
	}
	return nil
}

// CodecOptions returns the codec options described by the configuration.
func (c *Config) CodecOptions() []codec.Option {
	return []codec.Option{codec.WithLimits(codec.Limits{
		MaxDepth:        c.Codec.MaxDepth,
		MaxVectorLength: c.Codec.MaxVectorLength,
	})}
}

// OpenStorage opens the configured backend and wraps it in a caching
// storage.Storage. The returned close function releases both.
func (c *Config) OpenStorage(ctx context.Context) (*storage.Storage, storage.WritableBackend, func() error, error) {
	var (
		backend storage.WritableBackend
		closeDB = func() error { return nil }
	)
	switch c.Storage.Backend {
	case BackendSQLite:
		db, err := storage.OpenSQLite(ctx, c.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		backend, closeDB = db, db.Close
	default:
		backend = storage.NewMemoryBackend()
	}

	st, err := storage.New(ctx, backend,
		storage.WithCacheSizes(c.Storage.DeserializedCacheSize, c.Storage.VerifiedCacheSize))
	if err != nil {
		closeDB()
		return nil, nil, nil, err
	}
	closeAll := func() error {
		stErr := st.Close(ctx)
		if err := closeDB(); err != nil {
			return err
		}
		return stErr
	}
	return st, backend, closeAll, nil
}

// NewLogger builds a zap logger for the configured level and mode.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, configError(err, "log.level")
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func configError(cause error, format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Cause(cause).
		Detail(format, args...).
		Build()
}
