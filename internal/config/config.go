package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment layout and update settings for the managed
// game server.
type Config struct {
	// ServiceUser is the operating identity that owns the installed payload.
	ServiceUser string `yaml:"service_user"`
	// ServiceName is the unit name registered with the host service manager.
	ServiceName string `yaml:"service_name"`
	// BaseDir is the root of the deployment layout.
	BaseDir string `yaml:"base_dir"`
	// ServerDir is the payload directory. Defaults to <base_dir>/server.
	ServerDir string `yaml:"server_dir"`
	// DataDir holds configuration consumed by the launcher.
	// Defaults to <base_dir>/server-data.
	DataDir string `yaml:"data_dir"`
	// Launcher is the entry point filename inside ServerDir.
	Launcher string `yaml:"launcher"`
	// BuildIndexURL is the remote listing of published builds.
	BuildIndexURL string `yaml:"build_index_url"`
	// ArchiveFilename is the package filename appended to a build path.
	ArchiveFilename string `yaml:"archive_filename"`
	// Compression selects the archive compression: xz, gz, zst or none.
	Compression string `yaml:"compression"`
	// FetchTimeout bounds a single update's download, including retries.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// FetchRetries is the number of extra download attempts on transient
	// failures. Unset means DefaultFetchRetries; an explicit 0 disables retries.
	FetchRetries *uint64 `yaml:"fetch_retries"`
	// UpdateFolder is the URL where gamewarden's own release manifest is hosted.
	UpdateFolder string `yaml:"update_folder"`
	// DataRepoURL, when set, is the git repository cloned into DataDir during deploy.
	DataRepoURL string `yaml:"data_repo_url"`
	// GamePort is the UDP/TCP port opened in the firewall during deploy.
	GamePort int `yaml:"game_port"`
}

const (
	// DefaultConfigFilename is the default filename for deployment settings.
	DefaultConfigFilename = "gamewarden.yaml"

	// DefaultLauncher is the payload entry point started by the service unit.
	DefaultLauncher = "run.sh"

	// DefaultCompression matches the archives the build index publishes today.
	DefaultCompression = "xz"

	// DefaultFetchTimeout bounds the whole artifact download.
	DefaultFetchTimeout = 15 * time.Minute

	// DefaultFetchRetries is the number of extra attempts on transient fetch failures.
	DefaultFetchRetries uint64 = 3

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServiceUserRequired is returned when the service user is missing.
	errServiceUserRequired = errors.New("service user must be provided")
	// errBaseDirRequired is returned when the base directory is missing.
	errBaseDirRequired = errors.New("base directory must be provided")
	// errIndexURLRequired is returned when the build index URL is missing.
	errIndexURLRequired = errors.New("build index URL must be provided")
	// errArchiveRequired is returned when the archive filename is missing.
	errArchiveRequired = errors.New("archive filename must be provided")
	// errUnknownCompression is returned for unsupported compression names.
	errUnknownCompression = errors.New("unknown compression")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults derived from the base directory.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServiceUser == "" {
		return errServiceUserRequired
	}

	if cfg.BaseDir == "" {
		return errBaseDirRequired
	}

	if cfg.BuildIndexURL == "" {
		return errIndexURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.BuildIndexURL); err != nil {
		return fmt.Errorf("invalid build index URL: %w", err)
	}

	if cfg.ArchiveFilename == "" {
		return errArchiveRequired
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = cfg.ServiceUser
	}

	if cfg.ServerDir == "" {
		cfg.ServerDir = filepath.Join(cfg.BaseDir, "server")
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.BaseDir, "server-data")
	}

	if cfg.Launcher == "" {
		cfg.Launcher = DefaultLauncher
	}

	if cfg.Compression == "" {
		cfg.Compression = DefaultCompression
	}

	switch cfg.Compression {
	case "xz", "gz", "zst", "none":
	default:
		return fmt.Errorf("%w: %s", errUnknownCompression, cfg.Compression)
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	if cfg.FetchRetries == nil {
		retries := DefaultFetchRetries
		cfg.FetchRetries = &retries
	}

	if cfg.UpdateFolder == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.UpdateFolder); err != nil {
		return fmt.Errorf("invalid update folder URI: %w", err)
	}

	return nil
}

// LauncherPath returns the absolute path of the payload entry point.
func (c *Config) LauncherPath() string {
	return filepath.Join(c.ServerDir, c.Launcher)
}
