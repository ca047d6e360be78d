package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"vidingest/internal/config"
	"vidingest/internal/registry"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The managed root, log dir and a single local target ("workstation" rooted
// at <base>/source) live under one temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ManagedRoot = filepath.Join(base, "managed")
	cfgVal.Paths.RegistryDB = filepath.Join(base, "managed", ".vidingest", "registry.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Remote.KnownHostsFile = filepath.Join(base, "known_hosts")
	cfgVal.Targets = []config.Target{localTarget("workstation", filepath.Join(base, "source"))}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{cfgVal.Paths.ManagedRoot, filepath.Join(base, "source")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

func localTarget(name string, roots ...string) config.Target {
	return config.Target{
		Name:     name,
		Kind:     config.KindLocal,
		Roots:    roots,
		Platform: runtime.GOOS,
	}
}

// WithLocalTarget adds a local target. Relative roots resolve under the
// config's base directory.
func WithLocalTarget(name string, roots ...string) ConfigOption {
	return func(b *configBuilder) {
		resolved := make([]string, 0, len(roots))
		for _, root := range roots {
			if !filepath.IsAbs(root) {
				root = filepath.Join(b.baseDir, root)
			}
			resolved = append(resolved, root)
		}
		b.cfg.Targets = append(b.cfg.Targets, localTarget(name, resolved...))
	}
}

// WithTargets replaces the configured targets.
func WithTargets(targets ...config.Target) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Targets = append([]config.Target(nil), targets...)
	}
}

// WithSampleBytes shrinks the sample hash window so small fixtures exercise
// the prefix/suffix path.
func WithSampleBytes(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.SampleBytes = n
	}
}

// WithSubjectPattern sets the staging subject regex.
func WithSubjectPattern(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Staging.SubjectPattern = pattern
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ManagedRoot)
}

// SourceDir returns the root of the default "workstation" target.
func SourceDir(cfg *config.Config) string {
	return filepath.Join(BaseDir(cfg), "source")
}

// MustOpenRegistry opens the registry configured in cfg and closes it when
// the test ends.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()
	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
