package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vidingest/internal/config"
)

// versionTimeout bounds the `<tool> -version` probe.
const versionTimeout = 5 * time.Second

// Tool is an external binary vidingest may call on this host.
type Tool struct {
	Name    string
	Command string
	// VersionArg is passed to the binary to read its version line. Empty
	// skips the probe.
	VersionArg string
	Purpose    string
	Optional   bool
}

// Availability is the probe result for one Tool.
type Availability struct {
	Tool
	Path      string
	Version   string
	Available bool
	Detail    string
}

// Tools lists the binaries the configuration refers to. Remote scanners run
// on their own hosts and are checked there, not here.
func Tools(cfg *config.Config) []Tool {
	if cfg == nil {
		return nil
	}
	var tools []Tool
	if binary := strings.TrimSpace(cfg.Scan.FFprobeBinary); binary != "" {
		tools = append(tools, Tool{
			Name:       "ffprobe",
			Command:    binary,
			VersionArg: "-version",
			Purpose:    "container creation times",
			Optional:   true,
		})
	}
	return tools
}

// Probe resolves every tool on PATH and reads its version line.
func Probe(ctx context.Context, tools []Tool) []Availability {
	results := make([]Availability, 0, len(tools))
	for _, tool := range tools {
		tool.Command = strings.TrimSpace(tool.Command)
		result := Availability{Tool: tool}
		if tool.Command == "" {
			result.Detail = "command not configured"
			results = append(results, result)
			continue
		}
		path, err := exec.LookPath(tool.Command)
		if err != nil {
			result.Detail = fmt.Sprintf("binary %q not found", tool.Command)
			results = append(results, result)
			continue
		}
		result.Path = path
		result.Available = true
		if tool.VersionArg != "" {
			result.Version = versionLine(ctx, path, tool.VersionArg)
		}
		results = append(results, result)
	}
	return results
}

func versionLine(ctx context.Context, path, arg string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, arg).Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
