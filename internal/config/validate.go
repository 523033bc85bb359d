package config

import (
	"fmt"
)

var validFrameFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
}

var validContainers = map[string]struct{}{
	"mp4":  {},
	"webm": {},
	"mkv":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if c.Browser.PoolSize < 1 {
		return fmt.Errorf("browser.pool_size must be at least 1, got %d", c.Browser.PoolSize)
	}
	if c.Browser.ViewportWidth < 16 || c.Browser.ViewportHeight < 16 {
		return fmt.Errorf("browser viewport %dx%d is too small", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	return nil
}

func (c *Config) validateRender() error {
	if _, ok := validFrameFormats[c.Render.FrameFormat]; !ok {
		return fmt.Errorf("render.frame_format: unsupported value %q", c.Render.FrameFormat)
	}
	if c.Render.DefaultFPS < 1 || c.Render.DefaultFPS > 120 {
		return fmt.Errorf("render.default_fps must be between 1 and 120, got %d", c.Render.DefaultFPS)
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if _, ok := validContainers[c.Encoder.Container]; !ok {
		return fmt.Errorf("encoder.container: unsupported value %q", c.Encoder.Container)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

// FFmpegBinary returns the configured encoder executable name.
func (c *Config) FFmpegBinary() string {
	return c.Encoder.Binary
}
