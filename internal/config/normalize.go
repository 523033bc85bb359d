package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides are applied after the config file is parsed so that
// deployment environments can override file values without editing it.
type envOverrides struct {
	APIBind      string `env:"SLIDECAST_API_BIND"`
	PoolSize     int    `env:"SLIDECAST_POOL_SIZE"`
	BrowserPath  string `env:"SLIDECAST_BROWSER_PATH"`
	FFmpegBinary string `env:"SLIDECAST_FFMPEG_PATH"`
	OutputDir    string `env:"SLIDECAST_OUTPUT_DIR"`
	LogLevel     string `env:"SLIDECAST_LOG_LEVEL"`
	LogFormat    string `env:"SLIDECAST_LOG_FORMAT"`
}

func (c *Config) normalize() error {
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizeBrowser()
	c.normalizeRender()
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnvOverrides() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}
	if overrides.APIBind != "" {
		c.Paths.APIBind = overrides.APIBind
	}
	if overrides.PoolSize > 0 {
		c.Browser.PoolSize = overrides.PoolSize
	}
	if overrides.BrowserPath != "" {
		c.Browser.ExecPath = overrides.BrowserPath
	}
	if overrides.FFmpegBinary != "" {
		c.Encoder.Binary = overrides.FFmpegBinary
	}
	if overrides.OutputDir != "" {
		c.Paths.OutputDir = overrides.OutputDir
	}
	if overrides.LogLevel != "" {
		c.Logging.Level = overrides.LogLevel
	}
	if overrides.LogFormat != "" {
		c.Logging.Format = overrides.LogFormat
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeMedia() error {
	normalized := make([]string, 0, len(c.Media.AllowedDirs))
	for _, dir := range c.Media.AllowedDirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("media.allowed_dirs: %w", err)
		}
		normalized = append(normalized, expanded)
	}
	c.Media.AllowedDirs = normalized
	return nil
}

func (c *Config) normalizeBrowser() {
	if c.Browser.PoolSize <= 0 {
		c.Browser.PoolSize = defaultPoolSize
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = defaultViewportWidth
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = defaultViewportHeight
	}
	if c.Browser.ProtocolTimeout <= 0 {
		c.Browser.ProtocolTimeout = defaultProtocolTimeout
	}
	if c.Browser.HealthCheckInterval <= 0 {
		c.Browser.HealthCheckInterval = defaultHealthCheckInterval
	}
	c.Browser.ExecPath = strings.TrimSpace(c.Browser.ExecPath)
}

func (c *Config) normalizeRender() {
	c.Render.FrameFormat = strings.ToLower(strings.TrimSpace(c.Render.FrameFormat))
	if c.Render.FrameFormat == "" {
		c.Render.FrameFormat = defaultFrameFormat
	}
	if c.Render.FrameQuality <= 0 || c.Render.FrameQuality > 100 {
		c.Render.FrameQuality = defaultFrameQuality
	}
	if c.Render.DefaultFPS <= 0 {
		c.Render.DefaultFPS = defaultFPS
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Binary = strings.TrimSpace(c.Encoder.Binary)
	if c.Encoder.Binary == "" {
		c.Encoder.Binary = defaultEncoderBinary
	}
	c.Encoder.Codec = strings.TrimSpace(c.Encoder.Codec)
	if c.Encoder.Codec == "" {
		c.Encoder.Codec = defaultEncoderCodec
	}
	c.Encoder.PixelFormat = strings.TrimSpace(c.Encoder.PixelFormat)
	if c.Encoder.PixelFormat == "" {
		c.Encoder.PixelFormat = defaultPixelFormat
	}
	c.Encoder.Container = strings.ToLower(strings.TrimSpace(c.Encoder.Container))
	if c.Encoder.Container == "" {
		c.Encoder.Container = defaultContainer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
