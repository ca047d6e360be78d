package preflight

import (
	"context"
	"fmt"
	"path/filepath"

	"vidingest/internal/config"
	"vidingest/internal/faults"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results are reported but never abort a run.
	Advisory bool
}

// RunAll executes the checks that apply to an ingest over targets.
func RunAll(ctx context.Context, cfg *config.Config, targets []config.Target) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Managed root", cfg.Paths.ManagedRoot))
	results = append(results, CheckDirectoryAccess("Registry directory", filepath.Dir(cfg.Paths.RegistryDB)))
	if cfg.Paths.LogDir != "" {
		check := CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)
		check.Advisory = true
		results = append(results, check)
	}

	results = append(results, CheckTargetsSelected(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		if target.Remote() {
			results = append(results, CheckRemoteCredentials(target, cfg.Remote.InsecureIgnoreHostKey))
		}
	}

	results = append(results, CheckTools(ctx, cfg)...)
	return results
}

// Err returns a ConfigurationError describing the first failed required check.
func Err(results []Result) error {
	for _, r := range results {
		if r.Passed || r.Advisory {
			continue
		}
		return &faults.ConfigurationError{Field: "preflight", Reason: fmt.Sprintf("%s: %s", r.Name, r.Detail)}
	}
	return nil
}
