package config

import (
	"path/filepath"
	"regexp"
	"strings"

	"vidingest/internal/faults"
)

// Validate ensures the configuration is usable. Failures are *faults.ConfigurationError.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateStaging(); err != nil {
		return err
	}
	if err := c.validateTargets(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ManagedRoot) == "" {
		return faults.Configf("paths.managed_root", "must be set (or export VIDINGEST_MANAGED_ROOT)")
	}
	if strings.TrimSpace(c.Paths.RegistryDB) == "" {
		return faults.Configf("paths.registry_db", "must be set")
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.Scan.Extensions) == 0 {
		return faults.Configf("scan.extensions", "must include at least one extension")
	}
	if err := ensurePositiveMap(map[string]int{
		"scan.max_targets":  c.Scan.MaxTargets,
		"scan.hash_workers": c.Scan.HashWorkers,
	}); err != nil {
		return err
	}
	if c.Scan.SampleBytes <= 0 {
		return faults.Configf("scan.sample_bytes", "must be positive")
	}
	return validateGlobs("scan.exclude_globs", c.Scan.ExcludeGlobs)
}

func (c *Config) validateStaging() error {
	if err := ensurePositiveMap(map[string]int{
		"staging.workers":               c.Staging.Workers,
		"staging.lock_timeout_seconds":  c.Staging.LockTimeoutSeconds,
		"staging.partial_max_age_hours": c.Staging.PartialMaxAgeHours,
	}); err != nil {
		return err
	}
	if c.Staging.SubjectPattern == "" {
		return nil
	}
	re, err := regexp.Compile(c.Staging.SubjectPattern)
	if err != nil {
		return &faults.ConfigurationError{Field: "staging.subject_pattern", Reason: "invalid regular expression", Err: err}
	}
	if re.NumSubexp() == 0 {
		return faults.Configf("staging.subject_pattern", "must contain a capture group (preferably named \"subject\")")
	}
	return nil
}

func (c *Config) validateTargets() error {
	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		field := "targets[" + t.Name + "]"
		if t.Name == "" {
			return faults.Configf("targets", "entry %d must have a name", i)
		}
		key := strings.ToLower(t.Name)
		if _, dup := seen[key]; dup {
			return faults.Configf(field, "duplicate target name")
		}
		seen[key] = struct{}{}

		switch t.Kind {
		case KindLocal, KindSSH, KindSSHWSL:
		default:
			return faults.Configf(field+".kind", "unsupported value %q (use local, ssh or ssh_wsl)", t.Kind)
		}
		if len(t.Roots) == 0 {
			return faults.Configf(field+".roots", "must include at least one root")
		}
		if err := validateGlobs(field+".exclude_globs", t.ExcludeGlobs); err != nil {
			return err
		}
		if !t.Remote() {
			continue
		}
		if t.Host == "" {
			return faults.Configf(field+".host", "must be set for %s targets", t.Kind)
		}
		if t.Port <= 0 || t.Port > 65535 {
			return faults.Configf(field+".port", "must be between 1 and 65535")
		}
		if t.Kind == KindSSHWSL && t.Platform != "windows" {
			return faults.Configf(field+".platform", "ssh_wsl targets must run on windows")
		}
		if t.IdentityFile == "" && t.PasswordEnv == "" {
			return faults.Configf(field, "needs identity_file or password_env")
		}
		if t.KnownHostsFile == "" && !c.Remote.InsecureIgnoreHostKey {
			return faults.Configf(field+".known_hosts_file", "must be set unless remote.insecure_ignore_host_key is true")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return faults.Configf("logging.level", "unsupported value %q", c.Logging.Level)
	}
}

func validateGlobs(field string, globs []string) error {
	for _, glob := range globs {
		if _, err := filepath.Match(glob, ""); err != nil {
			return &faults.ConfigurationError{Field: field, Reason: "invalid pattern " + glob, Err: err}
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return faults.Configf(key, "must be positive")
		}
	}
	return nil
}
