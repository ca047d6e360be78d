package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"vidingest/internal/faults"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains managed storage and bookkeeping locations.
type Paths struct {
	ManagedRoot string `toml:"managed_root"`
	RegistryDB  string `toml:"registry_db"`
	LogDir      string `toml:"log_dir"`
}

// Scan controls discovery and hashing.
type Scan struct {
	Extensions            []string `toml:"extensions"`
	MaxTargets            int      `toml:"max_targets"`
	HashWorkers           int      `toml:"hash_workers"`
	SampleBytes           int64    `toml:"sample_bytes"`
	HashRetries           int      `toml:"hash_retries"`
	FullHash              bool     `toml:"full_hash"`
	SkipZeroByte          bool     `toml:"skip_zero_byte"`
	SkipHidden            bool     `toml:"skip_hidden"`
	SkipCloudPlaceholders bool     `toml:"skip_cloud_placeholders"`
	ExcludeGlobs          []string `toml:"exclude_globs"`
	FFprobeBinary         string   `toml:"ffprobe_binary"`
}

// Staging controls copies into managed storage.
type Staging struct {
	Workers            int    `toml:"workers"`
	SubjectPattern     string `toml:"subject_pattern"`
	UnknownSubject     string `toml:"unknown_subject"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
	PartialMaxAgeHours int    `toml:"partial_max_age_hours"`
}

// Remote holds defaults shared by every ssh target.
type Remote struct {
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	KnownHostsFile        string `toml:"known_hosts_file"`
	IdentityFile          string `toml:"identity_file"`
	User                  string `toml:"user"`
	Command               string `toml:"command"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Target kinds.
const (
	KindLocal  = "local"
	KindSSH    = "ssh"
	KindSSHWSL = "ssh_wsl"
)

// Target describes one place to scan. Remote credentials are referenced, never
// stored: PasswordEnv names an environment variable that is read at connect time.
type Target struct {
	Name           string   `toml:"name"`
	Kind           string   `toml:"kind"`
	Roots          []string `toml:"roots"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	User           string   `toml:"user"`
	IdentityFile   string   `toml:"identity_file"`
	PasswordEnv    string   `toml:"password_env"`
	KnownHostsFile string   `toml:"known_hosts_file"`
	Command        string   `toml:"command"`
	Platform       string   `toml:"platform"`
	ExcludeGlobs   []string `toml:"exclude_globs"`
}

// Remote reports whether the target is reached over ssh.
func (t Target) Remote() bool {
	return t.Kind == KindSSH || t.Kind == KindSSHWSL
}

// Config encapsulates all configuration values for vidingest.
//
// Configuration sections by subsystem:
//   - Paths: managed storage root, registry database, logs
//   - Scan: extensions, exclusions, hashing pool and sample size
//   - Staging: copy workers and destination layout
//   - Remote: ssh defaults shared by remote targets
//   - Logging: log format, level, and retention
//   - Targets: the hosts and roots to scan
type Config struct {
	Paths   Paths    `toml:"paths"`
	Scan    Scan     `toml:"scan"`
	Staging Staging  `toml:"staging"`
	Remote  Remote   `toml:"remote"`
	Logging Logging  `toml:"logging"`
	Targets []Target `toml:"targets"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Failures are *faults.ConfigurationError.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, &faults.ConfigurationError{Field: "config", Reason: "resolve path", Err: err}
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, &faults.ConfigurationError{Field: "config", Reason: "open " + resolvedPath, Err: err}
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, &faults.ConfigurationError{Field: "config", Reason: "parse " + resolvedPath, Err: err}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, asConfigError(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Parse decodes TOML content into a normalized, validated Config.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, &faults.ConfigurationError{Field: "config", Reason: "parse", Err: err}
	}
	if err := cfg.normalize(); err != nil {
		return nil, asConfigError(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidingest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the managed root, log and registry directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ManagedRoot, c.Paths.LogDir, filepath.Dir(c.Paths.RegistryDB)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TargetByName returns the configured target called name.
func (c *Config) TargetByName(name string) (Target, bool) {
	for _, target := range c.Targets {
		if strings.EqualFold(target.Name, name) {
			return target, true
		}
	}
	return Target{}, false
}

// SelectTargets returns the named targets, or every target when names is empty.
func (c *Config) SelectTargets(names []string) ([]Target, error) {
	if len(names) == 0 {
		out := make([]Target, len(c.Targets))
		copy(out, c.Targets)
		return out, nil
	}
	out := make([]Target, 0, len(names))
	for _, name := range names {
		target, ok := c.TargetByName(name)
		if !ok {
			return nil, faults.Configf("targets", "unknown target %q", name)
		}
		out = append(out, target)
	}
	return out, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func asConfigError(err error) error {
	var cfgErr *faults.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &faults.ConfigurationError{Reason: "normalize", Err: err}
}
