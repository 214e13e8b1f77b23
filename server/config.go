package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wsiserve/wsiserve/storage"
	"github.com/wsiserve/wsiserve/wsi"
)

const (
	// DefaultWebAddress is the default listen address of the web server.
	DefaultWebAddress = "localhost:8000"

	// DefaultRequestTimeout bounds one render request end to end.
	DefaultRequestTimeout = 60 * time.Second
)

// Config is the full server configuration, parsed from a TOML file and
// constructed once at startup.  All components receive it (or their section
// of it) explicitly; there is no process-wide lazily-initialized state.
type Config struct {
	Server     serverConfig
	Auth       authConfig
	Logging    wsi.LogConfig
	Store      storeConfig
	Cache      cacheConfig
	Kafka      storage.KafkaConfig
	Groupcache storage.RenderedTileCacheConfig
}

type serverConfig struct {
	HTTPAddress    string   `toml:"http_address"`
	Host           string   `toml:"host"`
	CorsOrigins    []string `toml:"cors_origins"`
	RequestTimeout int      `toml:"request_timeout"` // seconds
	ShutdownDelay  int      `toml:"shutdown_delay"`  // seconds
	FetchWorkers   int      `toml:"fetch_workers"`   // per-request tile fetch ceiling
}

type authConfig struct {
	SecretKey string `toml:"secret_key"`
	// OpenAccess disables bearer auth entirely, for development servers.
	OpenAccess bool `toml:"open_access"`
}

type storeConfig struct {
	// Bucket is the tile store reference: s3://, gs://, or file://.
	Bucket string `toml:"bucket"`
	// Path, if set instead of Bucket, reads tiles from a local directory.
	Path string `toml:"path"`
	// MetadataPath is the badger directory for metadata records.
	MetadataPath string `toml:"metadata_path"`
	// TileExtension of stored raw tiles (default "tif").
	TileExtension string `toml:"tile_extension"`
	// BlankMissingTiles substitutes zero tiles for sparse in-bounds holes.
	BlankMissingTiles bool `toml:"blank_missing_tiles"`
}

type cacheConfig struct {
	TileMB       int `toml:"tile_mb"`
	PermissionMB int `toml:"permission_mb"`
	// PermissionTTL in seconds; zero uses the default.
	PermissionTTL int `toml:"permission_ttl"`
}

// LoadConfig parses the TOML file and converts its relative paths to
// absolute, relative to the config file's own directory.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %q: %v", filename, err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths in TOML config: %v", err)
	}
	c.fillDefaults()
	return c, nil
}

func (c *Config) fillDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = DefaultWebAddress
	}
	if c.Server.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			wsi.Errorf("Unable to get default Host name: %v\n", err)
			host = "localhost"
		}
		c.Server.Host = host
	}
	if c.Server.ShutdownDelay == 0 {
		c.Server.ShutdownDelay = 5
	}
	if c.Store.TileExtension == "" {
		c.Store.TileExtension = storage.DefaultTileExtension
	}
}

// RequestTimeout returns the configured per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir := filepath.Dir(configPath)

	var err error
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = convertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return err
		}
	}
	if c.Store.Path != "" {
		c.Store.Path, err = convertToAbsolute(c.Store.Path, configDir)
		if err != nil {
			return err
		}
	}
	if c.Store.MetadataPath != "" {
		c.Store.MetadataPath, err = convertToAbsolute(c.Store.MetadataPath, configDir)
		if err != nil {
			return err
		}
	}
	return nil
}

func convertToAbsolute(path, configDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return path, fmt.Errorf("could not decode config directory %q: %v", configDir, err)
	}
	return filepath.Join(absDir, path), nil
}
