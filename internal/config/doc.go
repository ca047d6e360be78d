// Package config loads, normalizes, and validates vidingest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the VIDINGEST_MANAGED_ROOT
// environment fallback. Scan targets are normalized here so remote entries
// inherit the [remote] defaults for user, identity file, known_hosts and the
// remote command.
//
// Every load or validation failure is a *faults.ConfigurationError, which is
// the only error class that aborts an ingestion run before scanning starts.
package config
