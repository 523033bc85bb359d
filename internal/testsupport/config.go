package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Media.AllowedDirs = []string{filepath.Join(base, "media")}
	cfgVal.Browser.PoolSize = 1
	cfgVal.Browser.ProtocolTimeout = 5

	for _, dir := range []string{
		cfgVal.Paths.OutputDir,
		cfgVal.Paths.TempDir,
		cfgVal.Paths.LogDir,
		cfgVal.Media.AllowedDirs[0],
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPoolSize overrides the browser pool size on the test config.
func WithPoolSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Browser.PoolSize = size
	}
}

// WithExternalURLs toggles external media references on the test config.
func WithExternalURLs(allowed bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.AllowExternalURLs = allowed
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// MediaDir returns the allowed media directory backing the generated config.
func MediaDir(cfg *config.Config) string {
	if len(cfg.Media.AllowedDirs) == 0 {
		return ""
	}
	return cfg.Media.AllowedDirs[0]
}
