package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"vidingest/internal/config"
	"vidingest/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTargetsSelected fails when the run would scan nothing.
func CheckTargetsSelected(targets []config.Target) Result {
	const name = "Targets"
	if len(targets) == 0 {
		return Result{Name: name, Detail: "no targets configured or selected"}
	}
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(names, ", ")}
}

// CheckRemoteCredentials verifies that the files and environment variable a
// remote target references are present. Failures are advisory: an unreachable
// target is reported per target and never aborts the run.
func CheckRemoteCredentials(target config.Target, insecureHostKey bool) Result {
	name := "Credentials " + target.Name
	result := Result{Name: name, Advisory: true}

	var problems []string
	if target.IdentityFile != "" {
		if err := unix.Access(target.IdentityFile, unix.R_OK); err != nil {
			problems = append(problems, fmt.Sprintf("identity file %s unreadable", target.IdentityFile))
		}
	}
	if target.PasswordEnv != "" {
		if _, ok := os.LookupEnv(target.PasswordEnv); !ok {
			problems = append(problems, fmt.Sprintf("environment variable %s is not set", target.PasswordEnv))
		}
	}
	if !insecureHostKey {
		if _, err := os.Stat(target.KnownHostsFile); err != nil {
			problems = append(problems, fmt.Sprintf("known_hosts %s missing", target.KnownHostsFile))
		}
	}
	if len(problems) > 0 {
		result.Detail = strings.Join(problems, "; ")
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("%s@%s:%d", target.User, target.Host, target.Port)
	return result
}

// CheckTools reports whether the binaries the configuration names are
// available. Missing tools only degrade capture-time resolution.
func CheckTools(ctx context.Context, cfg *config.Config) []Result {
	var results []Result
	for _, a := range deps.Probe(ctx, deps.Tools(cfg)) {
		result := Result{Name: a.Name, Advisory: a.Optional}
		switch {
		case !a.Available:
			result.Detail = a.Detail
		case a.Version != "":
			result.Passed = true
			result.Detail = a.Version
		default:
			result.Passed = true
			result.Detail = a.Path
		}
		results = append(results, result)
	}
	return results
}
