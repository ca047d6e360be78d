// Package preflight provides readiness checks that run before an ingest run
// touches any target.
//
// RunAll checks the managed root, registry and log directories, that at least
// one target is selected, and the credentials each remote target references.
// Err turns failed required checks into a ConfigurationError so a run aborts
// before scanning. The CLI "targets" command shows the same results.
package preflight
