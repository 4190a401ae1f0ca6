package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/storage"
	"github.com/wippyai/vmcodec/value"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[codec]
max_depth = 32

[storage]
backend = "sqlite"
sqlite_path = "modules.db"
verified_cache_size = 8

[log]
level = "debug"
development = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Codec.MaxDepth != 32 {
		t.Errorf("MaxDepth = %d", cfg.Codec.MaxDepth)
	}
	if cfg.Codec.MaxVectorLength != Default().Codec.MaxVectorLength {
		t.Errorf("MaxVectorLength = %d, want default", cfg.Codec.MaxVectorLength)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.SQLitePath != filepath.Join(dir, "modules.db") {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.VerifiedCacheSize != 8 || cfg.Storage.DeserializedCacheSize != storage.DefaultDeserializedCacheSize {
		t.Errorf("cache sizes = %+v", cfg.Storage)
	}
	if !cfg.Log.Development || cfg.Log.Level != "debug" || cfg.Path != path {
		t.Errorf("Log = %+v, Path = %q", cfg.Log, cfg.Path)
	}
	if _, err := cfg.NewLogger(); err != nil {
		t.Errorf("NewLogger: %v", err)
	}
	if opts := cfg.CodecOptions(); len(opts) != 1 {
		t.Errorf("CodecOptions returned %d options", len(opts))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[codec\n", "parse"},
		{"unknown key", "[codec]\nmax_depth = 4\nmax_width = 3\n", "codec.max_width"},
		{"zero depth", "[codec]\nmax_depth = 0\n", "max_depth"},
		{"bad backend", "[storage]\nbackend = \"redis\"\n", "redis"},
		{"sqlite without path", "[storage]\nbackend = \"sqlite\"\n", "sqlite_path"},
		{"bad cache size", "[storage]\nverified_cache_size = -1\n", "cache sizes"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.content))
			if !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("Load = %v, want invalid input", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, root, "[codec]\nmax_depth = 7\n")
	cfg, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if cfg.Path != path || cfg.Codec.MaxDepth != 7 {
		t.Errorf("FindAndLoad = %q depth %d", cfg.Path, cfg.Codec.MaxDepth)
	}
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendMemory, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Backend = backend
			cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "modules.db")

			st, b, closeAll, err := cfg.OpenStorage(ctx)
			if err != nil {
				t.Fatalf("OpenStorage: %v", err)
			}
			defer closeAll()
			if st == nil || b == nil {
				t.Fatal("OpenStorage returned nil")
			}
			ok, err := st.CheckModuleExists(ctx, value.MustParseAddress("0x1"), "m")
			if err != nil || ok {
				t.Errorf("CheckModuleExists on empty backend = %v, %v", ok, err)
			}
		})
	}
}
