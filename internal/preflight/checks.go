package preflight

import (
	"os"
	"os/exec"
	"path/filepath"

	"slidecast/internal/config"
)

// Result reports the outcome of a single readiness check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes the readiness checks the daemon depends on. It is called
// once at startup and by the CLI status command.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckEncoderBinary(cfg.Encoder.Binary),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
	}
}

// CheckEncoderBinary verifies the encoder executable is on PATH.
func CheckEncoderBinary(binary string) Result {
	const name = "Encoder"
	if binary == "" {
		return Result{Name: name, Detail: "binary not configured"}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: binary + " not found on PATH"}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies a directory exists (or can be created) and is
// writable.
func CheckDirectoryAccess(name, dir string) Result {
	if dir == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	probe := filepath.Join(dir, ".slidecast-write-check")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return Result{Name: name, Detail: "not writable: " + err.Error()}
	}
	_ = os.Remove(probe)
	return Result{Name: name, Passed: true, Detail: dir}
}
