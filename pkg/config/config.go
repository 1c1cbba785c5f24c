package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "bowler"
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FormatJSON = "json"
	FormatYAML = "yaml"

	portDefault         = 8080
	hostDefault         = "127.0.0.1"
	writeTimeoutDefault = 5 * time.Second
	maxPort             = 65535
)

// Config represents app config object.
type Config struct {
	Host         string        `yaml:"host" env:"BOWLER_HOST"`
	Port         int           `yaml:"port" env:"BOWLER_PORT"`
	DBDriver     string        `yaml:"db_driver" env:"BOWLER_DB_DRIVER"`
	DBDSN        string        `yaml:"db_dsn,omitempty" env:"BOWLER_DB_DSN"`
	LogLevel     string        `yaml:"log_level" env:"BOWLER_LOG_LEVEL"`
	Format       string        `yaml:"format" env:"BOWLER_FORMAT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"BOWLER_WRITE_TIMEOUT"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Host:         hostDefault,
		Port:         portDefault,
		DBDriver:     DriverSQLite,
		LogLevel:     "info",
		Format:       FormatJSON,
		WriteTimeout: writeTimeoutDefault,
	}
}

// Validate checks the config values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if c.Port < 1 || c.Port > maxPort {
		return errors.Errorf("invalid port: %d", c.Port)
	}
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DBDSN == "" {
			return errors.New("db_dsn required for postgres")
		}
	default:
		return errors.Errorf("unsupported db_driver: %s", c.DBDriver)
	}
	switch c.Format {
	case FormatJSON, FormatYAML:
	default:
		return errors.Errorf("unsupported format: %s", c.Format)
	}
	if c.WriteTimeout <= 0 {
		return errors.Errorf("invalid write_timeout: %s", c.WriteTimeout)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Save writes the config into dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", configFileName)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, Default()); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file: %s", path)
	}

	// start from defaults so keys missing in older files keep sane values
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file: %s", path)
	}
	return c, nil
}

// Load reads the config file in dirPath and applies BOWLER_* environment
// overrides on top of it.
func Load(dirPath string) (*Config, error) {
	c, err := ReadOrCreate(dirPath)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment overrides")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return c, nil
}

// GetOrCreateHomeDir returns the app directory under the user home dir.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
