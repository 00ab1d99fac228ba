// Package config loads schemadrift settings from a dotenv file, with
// process environment variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoConfig is returned when the configuration file cannot be read.
var ErrNoConfig = errors.New("configuration not found")

// Database holds connection settings for the watched server.
type Database struct {
	Host string
	User string
	Pass string
	Name string
	Port int
}

// Config holds all daemon configuration.
type Config struct {
	Database Database

	// MainBranch is the branch whose schemas are the baseline of record.
	MainBranch string
	// OutputDir is the root of the tables/ and dbtables/ trees.
	OutputDir string
	// RepoPath is the git working tree to watch.
	RepoPath string

	DBPollInterval  time.Duration
	GitPollInterval time.Duration

	StateDB    string
	SocketPath string
	LogFile    string

	// MetricsAddr is the host:port for the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string
}

// DefaultEnvFile is the configuration file read when none is given.
const DefaultEnvFile = ".env"

const defaultDataDir = ".schemadrift"

// MinPollInterval is the shortest accepted poll interval.
const MinPollInterval = 10 * time.Millisecond

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 3306)
	v.SetDefault("main_branch", "main")
	v.SetDefault("output_dir", ".")
	v.SetDefault("repo_path", ".")
	v.SetDefault("db_poll_interval", "5s")
	v.SetDefault("git_poll_interval", "2s")
	v.SetDefault("state_db", filepath.Join(defaultDataDir, "state.db"))
	v.SetDefault("socket_path", filepath.Join(defaultDataDir, "schemadrift.sock"))
	v.SetDefault("log_file", filepath.Join("logs", "app.log"))
	v.SetDefault("metrics_addr", "")
}

// Default returns a Config with sensible defaults and no database name.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Load reads the dotenv file at path (DB_HOST, DB_USER, DB_PASS, DB_NAME,
// DB_PORT and optional overrides). Environment variables with the same
// names win over the file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoConfig, path, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoConfig, path, err)
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: Database{
			Host: v.GetString("db_host"),
			User: v.GetString("db_user"),
			Pass: v.GetString("db_pass"),
			Name: v.GetString("db_name"),
			Port: v.GetInt("db_port"),
		},
		MainBranch:      v.GetString("main_branch"),
		OutputDir:       v.GetString("output_dir"),
		RepoPath:        v.GetString("repo_path"),
		DBPollInterval:  interval(v, "db_poll_interval"),
		GitPollInterval: interval(v, "git_poll_interval"),
		StateDB:         v.GetString("state_db"),
		SocketPath:      v.GetString("socket_path"),
		LogFile:         v.GetString("log_file"),
		MetricsAddr:     v.GetString("metrics_addr"),
	}
}

// interval reads a duration setting. A bare integer such as "5" is taken as
// seconds.
func interval(v *viper.Viper, key string) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return time.Duration(n) * time.Second
	}
	return v.GetDuration(key)
}

// Validate checks the settings the watch loops cannot run without.
func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.Port <= 0 {
		return fmt.Errorf("DB_PORT must be positive, got %d", c.Database.Port)
	}
	if c.DBPollInterval < MinPollInterval {
		return fmt.Errorf("DB_POLL_INTERVAL must be at least %s, got %s", MinPollInterval, c.DBPollInterval)
	}
	if c.GitPollInterval < MinPollInterval {
		return fmt.Errorf("GIT_POLL_INTERVAL must be at least %s, got %s", MinPollInterval, c.GitPollInterval)
	}
	return nil
}

// EnsureDirs creates the output, state and socket directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.OutputDir, filepath.Dir(c.StateDB), filepath.Dir(c.SocketPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
