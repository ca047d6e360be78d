package scanner

import (
	"strings"
	"time"

	"vidingest/internal/config"
	"vidingest/internal/remote"
)

// Kind selects how a target is scanned.
type Kind string

const (
	KindLocal  Kind = config.KindLocal
	KindSSH    Kind = config.KindSSH
	KindSSHWSL Kind = config.KindSSHWSL
)

// Credentials reference the secrets used to reach a remote target. Nothing
// here is a secret itself.
type Credentials struct {
	IdentityFile          string
	PasswordEnv           string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
}

// ScanTarget is one place to look for recordings.
type ScanTarget struct {
	Name          string
	Kind          Kind
	Roots         []string
	Host          string
	Port          int
	User          string
	Platform      string
	Rules         Rules
	Credentials   Credentials
	RemoteCommand string
	// ConnectTimeout bounds the SSH dial and handshake.
	ConnectTimeout time.Duration
}

// Remote reports whether the target is reached over SSH.
func (t ScanTarget) Remote() bool {
	return t.Kind == KindSSH || t.Kind == KindSSHWSL
}

// Endpoint returns the connection parameters of a remote target.
func (t ScanTarget) Endpoint() remote.Endpoint {
	port := t.Port
	if port <= 0 {
		port = 22
	}
	timeout := t.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return remote.Endpoint{
		Name:                  t.Name,
		Kind:                  string(t.Kind),
		Host:                  t.Host,
		Port:                  port,
		User:                  t.User,
		IdentityFile:          t.Credentials.IdentityFile,
		PasswordEnv:           t.Credentials.PasswordEnv,
		KnownHostsFile:        t.Credentials.KnownHostsFile,
		InsecureIgnoreHostKey: t.Credentials.InsecureIgnoreHostKey,
		Platform:              t.Platform,
		Command:               t.RemoteCommand,
		Timeout:               timeout,
	}
}

// TargetFromConfig converts a normalized config target. Scan-wide rules from
// [scan] are combined with the target's own exclude globs.
func TargetFromConfig(cfg *config.Config, t config.Target) ScanTarget {
	rules := RulesFromConfig(cfg.Scan, t.Platform)
	rules.ExcludeGlobs = append(rules.ExcludeGlobs, t.ExcludeGlobs...)
	return ScanTarget{
		Name:     t.Name,
		Kind:     Kind(strings.ToLower(t.Kind)),
		Roots:    append([]string(nil), t.Roots...),
		Host:     t.Host,
		Port:     t.Port,
		User:     t.User,
		Platform: t.Platform,
		Rules:    rules,
		Credentials: Credentials{
			IdentityFile:          t.IdentityFile,
			PasswordEnv:           t.PasswordEnv,
			KnownHostsFile:        t.KnownHostsFile,
			InsecureIgnoreHostKey: cfg.Remote.InsecureIgnoreHostKey,
		},
		RemoteCommand:  t.Command,
		ConnectTimeout: time.Duration(cfg.Remote.ConnectTimeoutSeconds) * time.Second,
	}
}

// FromConfig converts the named targets, or every configured target when
// names is empty.
func FromConfig(cfg *config.Config, names []string) ([]ScanTarget, error) {
	selected, err := cfg.SelectTargets(names)
	if err != nil {
		return nil, err
	}
	targets := make([]ScanTarget, 0, len(selected))
	for _, t := range selected {
		targets = append(targets, TargetFromConfig(cfg, t))
	}
	return targets, nil
}
