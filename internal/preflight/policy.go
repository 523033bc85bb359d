package preflight

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"slidecast/internal/config"
	"slidecast/internal/services"
)

// Identifiable rejection reasons. Each is also tagged with
// services.ErrValidation so the API layer classifies them uniformly.
var (
	ErrExternalBlocked   = errors.New("external URLs are blocked")
	ErrFileSchemeBlocked = errors.New("file:// references are not allowed")
	ErrSchemeBlocked     = errors.New("unsupported URL scheme")
	ErrOutsideAllowed    = errors.New("path is outside the allowed media directories")
	ErrNoAllowedDirs     = errors.New("no allowed media directories are configured")
)

// Policy decides whether a media reference may be loaded by a browser
// session. It carries no mutable state; a single value is shared by all jobs.
type Policy struct {
	allowExternal bool
	allowedDirs   []string
}

// NewPolicy derives the admissibility policy from configuration. Allowed
// directories are resolved through symlinks once so later containment checks
// compare canonical paths.
func NewPolicy(cfg *config.Config) Policy {
	p := Policy{}
	if cfg == nil {
		return p
	}
	p.allowExternal = cfg.Media.AllowExternalURLs
	for _, dir := range cfg.Media.AllowedDirs {
		p.allowedDirs = append(p.allowedDirs, canonicalize(dir))
	}
	return p
}

// CheckReference validates one media reference (URL or local path) before any
// fetch or navigation happens. It must be called for every distinct reference
// in a job, not only at job acceptance.
func (p Policy) CheckReference(ref string) error {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return services.Wrap(services.ErrValidation, "preflight", "reference", "empty media reference", nil)
	}

	switch scheme(trimmed) {
	case "http", "https":
		if !p.allowExternal {
			return p.reject("reference", trimmed, ErrExternalBlocked)
		}
		return nil
	case "file":
		// Embedded file:// references cannot be safely re-validated after
		// normalization, so they are rejected outright.
		return p.reject("reference", trimmed, ErrFileSchemeBlocked)
	case "data", "":
		// data: URIs carry their content inline; nothing is fetched.
		if scheme(trimmed) == "data" {
			return nil
		}
		return p.checkLocalPath(trimmed)
	default:
		return p.reject("reference", trimmed, ErrSchemeBlocked)
	}
}

// CheckAll validates every reference and returns the first rejection.
func (p Policy) CheckAll(refs []string) error {
	for _, ref := range refs {
		if err := p.CheckReference(ref); err != nil {
			return err
		}
	}
	return nil
}

// ExternalAllowed reports whether http(s) references are admissible.
func (p Policy) ExternalAllowed() bool {
	return p.allowExternal
}

func (p Policy) checkLocalPath(ref string) error {
	if len(p.allowedDirs) == 0 {
		return p.reject("path", ref, ErrNoAllowedDirs)
	}

	// Percent-encoded separators must not survive into the containment
	// check; a reference that cannot be decoded is rejected as-is.
	decoded := ref
	if unescaped, err := url.PathUnescape(ref); err == nil {
		decoded = unescaped
	}

	resolved := canonicalize(decoded)
	for _, dir := range p.allowedDirs {
		if contains(dir, resolved) {
			return nil
		}
	}
	return p.reject("path", ref, ErrOutsideAllowed)
}

func (p Policy) reject(operation, ref string, reason error) error {
	return services.Wrap(services.ErrValidation, "preflight", operation, fmt.Sprintf("%q", ref), reason)
}

// canonicalize normalizes dot segments, makes the path absolute, and resolves
// symlinks where the path exists. Nonexistent paths keep their lexical form
// so traversal spellings are still caught.
func canonicalize(path string) string {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func scheme(ref string) string {
	idx := strings.Index(ref, ":")
	if idx <= 0 {
		return ""
	}
	candidate := ref[:idx]
	for _, r := range candidate {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return ""
		}
	}
	// A single letter followed by a path separator is a path, not a scheme.
	if len(candidate) == 1 {
		return ""
	}
	return strings.ToLower(candidate)
}
