// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/memohai/sharekit/internal/codec"
	"github.com/memohai/sharekit/internal/share"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath   = "sharekit.toml"
	DefaultSurface      = string(share.SurfaceShareSheet)
	DefaultLibraryRoot  = "data/library"
	DefaultDraftsPath   = "data/drafts.db"
	DefaultLibraryBytes = 32 << 20
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Share   ShareConfig   `toml:"share"`
	Codec   CodecConfig   `toml:"codec"`
	Library LibraryConfig `toml:"library"`
	Drafts  DraftsConfig  `toml:"drafts"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ShareConfig holds validation limits and the surface used when none is given.
type ShareConfig struct {
	MaxItems int    `toml:"max_items"`
	Surface  string `toml:"surface"`
}

// CodecConfig bounds encoded photos.
type CodecConfig struct {
	MaxImageBytes int64 `toml:"max_image_bytes"`
	ChunkSize     int   `toml:"chunk_size"`
}

// LibraryConfig locates the local media library.
type LibraryConfig struct {
	Root     string `toml:"root"`
	MaxBytes int64  `toml:"max_bytes"`
}

// DraftsConfig locates the SQLite draft store.
type DraftsConfig struct {
	Path string `toml:"path"`
}

// Context returns the sharing context for the configured surface.
func (c ShareConfig) Context() (share.Context, error) {
	surface, err := share.ParseSurface(c.Surface)
	if err != nil {
		return share.Context{}, err
	}
	return share.ContextFor(surface)
}

// Validator builds a validator with the configured limit.
func (c ShareConfig) Validator() *share.Validator {
	return share.NewValidator(c.MaxItems)
}

// New builds a codec with the configured limits.
func (c CodecConfig) New() *codec.Codec {
	return codec.New(codec.WithMaxImageBytes(c.MaxImageBytes), codec.WithChunkSize(c.ChunkSize))
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Share: ShareConfig{
			MaxItems: share.DefaultMaxItems,
			Surface:  DefaultSurface,
		},
		Codec: CodecConfig{
			MaxImageBytes: codec.DefaultMaxImageBytes,
			ChunkSize:     codec.DefaultChunkSize,
		},
		Library: LibraryConfig{
			Root:     DefaultLibraryRoot,
			MaxBytes: DefaultLibraryBytes,
		},
		Drafts: DraftsConfig{
			Path: DefaultDraftsPath,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if _, err := share.ParseSurface(cfg.Share.Surface); err != nil {
		return cfg, fmt.Errorf("share.surface: %w", err)
	}
	return cfg, nil
}
