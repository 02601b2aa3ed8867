package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Download   DownloadConfig   `toml:"download"`
	Network    NetworkConfig    `toml:"network"`
	Transcoder TranscoderConfig `toml:"transcoder"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// DownloadConfig controls format selection, output placement and queue sizing.
type DownloadConfig struct {
	Quality                    string   `toml:"quality"`
	OutputDirectory            string   `toml:"output_directory"`
	MaxConcurrency             int      `toml:"max_concurrency"`
	ProgressWindowMS           int      `toml:"progress_window_ms"`
	ExtraOutputDirectives      []string `toml:"extra_output_directives"`
	AllowNonPreferredContainer bool     `toml:"allow_non_preferred_container"`
}

// NetworkConfig contains proxy rotation and base request settings.
type NetworkConfig struct {
	Proxies        []string          `toml:"proxies"`
	RotateProxies  *bool             `toml:"rotate_proxies"` // nil rotates iff proxies are configured
	MaxRedirects   int               `toml:"max_redirects"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	CookieFile     string            `toml:"cookie_file"`
	Headers        map[string]string `toml:"headers"`
}

// TranscoderConfig locates the external encoder.
type TranscoderConfig struct {
	BinaryPath string `toml:"binary_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the defaults from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks numeric ranges that would otherwise surface as runtime failures.
func (c *Config) Validate() error {
	if c.Download.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max_concurrency must be positive, got %d", ErrInvalidConfig, c.Download.MaxConcurrency)
	}
	if c.Download.ProgressWindowMS < 0 {
		return fmt.Errorf("%w: progress_window_ms must not be negative", ErrInvalidConfig)
	}
	if c.Network.MaxRedirects < 0 {
		return fmt.Errorf("%w: max_redirects must not be negative", ErrInvalidConfig)
	}
	if c.Network.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ShouldRotate reports whether proxy rotation is enabled.
func (n NetworkConfig) ShouldRotate() bool {
	if n.RotateProxies != nil {
		return *n.RotateProxies
	}
	return len(n.Proxies) > 0
}

// Timeout returns the per-request timeout, zero meaning none.
func (n NetworkConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// ProgressWindow returns the sampling window as a duration.
func (d DownloadConfig) ProgressWindow() time.Duration {
	return time.Duration(d.ProgressWindowMS) * time.Millisecond
}

// OutputDir resolves the output directory, falling back to the user's home directory.
func (d DownloadConfig) OutputDir() (string, error) {
	if d.OutputDirectory != "" {
		return d.OutputDirectory, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot determine home directory: %v", ErrInvalidConfig, err)
	}
	return home, nil
}

// Addr returns host:port for listening.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// URL returns the base URL clients use to reach the server.
func (s ServerConfig) URL() string {
	return "http://" + s.Addr()
}
