package ouroboros

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/i5heu/ouroboros-cascade/pkg/logging"
)

// Config configures a cell. Only Paths[0] is used at the moment; the vault
// lives in Paths[0]/vault and a persistent cache in Paths[0]/cache.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string `yaml:"paths"`
	// MinimumFreeGB is a free-space threshold checked when stores open.
	MinimumFreeGB uint `yaml:"minimumFreeGB"`
	// CacheInMemory keeps the cache in memory instead of on disk.
	CacheInMemory bool `yaml:"cacheInMemory"`
	// LogLevel is one of debug, info, warn, error. Ignored when Logger is set.
	LogLevel string `yaml:"logLevel"`
	// NetworkTimeout bounds every network request of the cell. Zero leaves
	// it to the caller's context.
	NetworkTimeout time.Duration `yaml:"networkTimeout"`
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger `yaml:"-"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) { // A
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, nil
}

func defaultLogger(level string) (*slog.Logger, error) { // A
	l, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(l, os.Stderr), nil
}
