package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeStaging()
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	if err := c.normalizeTargets(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ManagedRoot) == "" {
		if value, ok := os.LookupEnv("VIDINGEST_MANAGED_ROOT"); ok && strings.TrimSpace(value) != "" {
			c.Paths.ManagedRoot = strings.TrimSpace(value)
		} else {
			c.Paths.ManagedRoot = defaultManagedRoot
		}
	}
	if c.Paths.ManagedRoot, err = expandPath(strings.TrimSpace(c.Paths.ManagedRoot)); err != nil {
		return fmt.Errorf("paths.managed_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.RegistryDB) == "" {
		c.Paths.RegistryDB = filepath.Join(c.Paths.ManagedRoot, filepath.FromSlash(defaultRegistryRelative))
	}
	if c.Paths.RegistryDB, err = expandPath(strings.TrimSpace(c.Paths.RegistryDB)); err != nil {
		return fmt.Errorf("paths.registry_db: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.Extensions = normalizeExtensions(c.Scan.Extensions)
	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = append([]string(nil), defaultExtensions...)
	}
	if c.Scan.MaxTargets <= 0 {
		c.Scan.MaxTargets = defaultMaxTargets
	}
	if c.Scan.HashWorkers <= 0 {
		c.Scan.HashWorkers = defaultHashWorkers
	}
	if c.Scan.SampleBytes <= 0 {
		c.Scan.SampleBytes = defaultSampleBytes
	}
	if c.Scan.HashRetries < 0 {
		c.Scan.HashRetries = 0
	}
	c.Scan.ExcludeGlobs = trimList(c.Scan.ExcludeGlobs)
	c.Scan.FFprobeBinary = strings.TrimSpace(c.Scan.FFprobeBinary)
}

func (c *Config) normalizeStaging() {
	if c.Staging.Workers <= 0 {
		c.Staging.Workers = defaultStagingWorkers
	}
	c.Staging.SubjectPattern = strings.TrimSpace(c.Staging.SubjectPattern)
	c.Staging.UnknownSubject = strings.TrimSpace(c.Staging.UnknownSubject)
	if c.Staging.UnknownSubject == "" {
		c.Staging.UnknownSubject = defaultUnknownSubject
	}
	if c.Staging.LockTimeoutSeconds <= 0 {
		c.Staging.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
	if c.Staging.PartialMaxAgeHours <= 0 {
		c.Staging.PartialMaxAgeHours = defaultPartialMaxAgeHours
	}
}

func (c *Config) normalizeRemote() error {
	var err error
	if c.Remote.ConnectTimeoutSeconds <= 0 {
		c.Remote.ConnectTimeoutSeconds = defaultConnectTimeoutSeconds
	}
	c.Remote.KnownHostsFile = strings.TrimSpace(c.Remote.KnownHostsFile)
	if c.Remote.KnownHostsFile == "" && !c.Remote.InsecureIgnoreHostKey {
		c.Remote.KnownHostsFile = defaultKnownHostsFile
	}
	if c.Remote.KnownHostsFile, err = expandPath(c.Remote.KnownHostsFile); err != nil {
		return fmt.Errorf("remote.known_hosts_file: %w", err)
	}
	if c.Remote.IdentityFile, err = expandPath(strings.TrimSpace(c.Remote.IdentityFile)); err != nil {
		return fmt.Errorf("remote.identity_file: %w", err)
	}
	c.Remote.User = strings.TrimSpace(c.Remote.User)
	c.Remote.Command = strings.TrimSpace(c.Remote.Command)
	if c.Remote.Command == "" {
		c.Remote.Command = defaultRemoteCommand
	}
	return nil
}

func (c *Config) normalizeTargets() error {
	for i := range c.Targets {
		t := &c.Targets[i]
		t.Name = strings.TrimSpace(t.Name)
		t.Host = strings.TrimSpace(t.Host)
		t.Kind = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t.Kind)), "-", "_")
		if t.Kind == "" {
			if t.Host == "" {
				t.Kind = KindLocal
			} else {
				t.Kind = KindSSH
			}
		}
		if t.Name == "" {
			t.Name = t.Host
		}
		t.Roots = trimList(t.Roots)
		t.ExcludeGlobs = trimList(t.ExcludeGlobs)
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))

		if !t.Remote() {
			if t.Name == "" {
				t.Name = "local"
			}
			if t.Platform == "" {
				t.Platform = runtime.GOOS
			}
			for j, root := range t.Roots {
				expanded, err := expandPath(root)
				if err != nil {
					return fmt.Errorf("targets[%d].roots: %w", i, err)
				}
				t.Roots[j] = expanded
			}
			continue
		}

		if t.Platform == "" {
			if t.Kind == KindSSHWSL {
				t.Platform = "windows"
			} else {
				t.Platform = "linux"
			}
		}
		if t.Port <= 0 {
			t.Port = defaultSSHPort
		}
		t.User = strings.TrimSpace(t.User)
		if t.User == "" {
			t.User = c.Remote.User
		}
		t.PasswordEnv = strings.TrimSpace(t.PasswordEnv)
		t.IdentityFile = strings.TrimSpace(t.IdentityFile)
		if t.IdentityFile == "" {
			t.IdentityFile = c.Remote.IdentityFile
		}
		var err error
		if t.IdentityFile, err = expandPath(t.IdentityFile); err != nil {
			return fmt.Errorf("targets[%d].identity_file: %w", i, err)
		}
		t.KnownHostsFile = strings.TrimSpace(t.KnownHostsFile)
		if t.KnownHostsFile == "" {
			t.KnownHostsFile = c.Remote.KnownHostsFile
		}
		if t.KnownHostsFile, err = expandPath(t.KnownHostsFile); err != nil {
			return fmt.Errorf("targets[%d].known_hosts_file: %w", i, err)
		}
		t.Command = strings.TrimSpace(t.Command)
		if t.Command == "" {
			t.Command = c.Remote.Command
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, exists := seen[ext]; exists {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func trimList(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
