package preflight_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/preflight"
	"slidecast/internal/services"
)

func newPolicy(t *testing.T, allowExternal bool, dirs ...string) preflight.Policy {
	t.Helper()
	cfg := config.Default()
	cfg.Media.AllowExternalURLs = allowExternal
	cfg.Media.AllowedDirs = dirs
	return preflight.NewPolicy(&cfg)
}

func TestExternalURLBlockedByDefault(t *testing.T) {
	policy := newPolicy(t, false)

	err := policy.CheckReference("https://example.com/x.png")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !errors.Is(err, preflight.ErrExternalBlocked) {
		t.Fatalf("expected identifiable external-blocked error, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestExternalURLAllowedWhenEnabled(t *testing.T) {
	policy := newPolicy(t, true)
	if err := policy.CheckReference("https://example.com/x.png"); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if err := policy.CheckReference("http://example.com/x.png"); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestFileSchemeAlwaysRejected(t *testing.T) {
	policy := newPolicy(t, true, t.TempDir())
	err := policy.CheckReference("file:///etc/passwd")
	if !errors.Is(err, preflight.ErrFileSchemeBlocked) {
		t.Fatalf("expected file-scheme rejection, got %v", err)
	}
}

func TestLocalPathInsideAllowedDir(t *testing.T) {
	base := t.TempDir()
	asset := filepath.Join(base, "deck", "logo.png")
	if err := os.MkdirAll(filepath.Dir(asset), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(asset, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	policy := newPolicy(t, false, base)
	if err := policy.CheckReference(asset); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestTraversalOutsideAllowedDirRejected(t *testing.T) {
	base := t.TempDir()
	policy := newPolicy(t, false, base)

	refs := []string{
		filepath.Join(base, "..", "..", "etc", "passwd"),
		"/etc/passwd",
		filepath.Join(base, "a", "..", "..", "secret.png"),
		filepath.Join(base, "%2e%2e", "%2e%2e", "etc", "passwd"),
	}
	for _, ref := range refs {
		err := policy.CheckReference(ref)
		if !errors.Is(err, preflight.ErrOutsideAllowed) {
			t.Errorf("CheckReference(%q) = %v, want outside-allowed rejection", ref, err)
		}
	}
}

func TestSymlinkEscapeRejected(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.png")
	if err := os.WriteFile(secret, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "alias.png")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	policy := newPolicy(t, false, base)
	if err := policy.CheckReference(link); !errors.Is(err, preflight.ErrOutsideAllowed) {
		t.Fatalf("expected symlink escape rejection, got %v", err)
	}
}

func TestLocalPathWithoutAllowedDirsRejected(t *testing.T) {
	policy := newPolicy(t, false)
	err := policy.CheckReference("/srv/media/logo.png")
	if !errors.Is(err, preflight.ErrNoAllowedDirs) {
		t.Fatalf("expected no-allowed-dirs rejection, got %v", err)
	}
}

func TestDataURIAccepted(t *testing.T) {
	policy := newPolicy(t, false)
	if err := policy.CheckReference("data:image/png;base64,iVBORw0KGgo="); err != nil {
		t.Fatalf("expected data URI acceptance, got %v", err)
	}
}

func TestUnknownSchemeRejected(t *testing.T) {
	policy := newPolicy(t, true, t.TempDir())
	err := policy.CheckReference("gopher://example.com/x")
	if !errors.Is(err, preflight.ErrSchemeBlocked) {
		t.Fatalf("expected scheme rejection, got %v", err)
	}
}

func TestCheckAllStopsAtFirstRejection(t *testing.T) {
	base := t.TempDir()
	asset := filepath.Join(base, "ok.png")
	if err := os.WriteFile(asset, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	policy := newPolicy(t, false, base)

	err := policy.CheckAll([]string{asset, "https://example.com/x.png"})
	if !errors.Is(err, preflight.ErrExternalBlocked) {
		t.Fatalf("expected external rejection, got %v", err)
	}
}

func TestCheckEncoderBinary(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)

	result := preflight.CheckEncoderBinary("ffmpeg")
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}

	missing := preflight.CheckEncoderBinary("definitely-not-a-binary")
	if missing.Passed {
		t.Fatalf("expected failure, got %+v", missing)
	}
}
