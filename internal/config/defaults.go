package config

const (
	defaultOutputDir           = "~/.local/share/slidecast/output"
	defaultTempDir             = "~/.local/share/slidecast/tmp"
	defaultLogDir              = "~/.local/share/slidecast/logs"
	defaultAPIBind             = "127.0.0.1:7690"
	defaultPoolSize            = 2
	defaultViewportWidth       = 1920
	defaultViewportHeight      = 1080
	defaultProtocolTimeout     = 30
	defaultHealthCheckInterval = 15
	defaultFrameFormat         = "jpeg"
	defaultFrameQuality        = 90
	defaultFPS                 = 30
	defaultEncoderBinary       = "ffmpeg"
	defaultEncoderCodec        = "libx264"
	defaultPixelFormat         = "yuv420p"
	defaultContainer           = "mp4"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			TempDir:   defaultTempDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Browser: Browser{
			PoolSize:            defaultPoolSize,
			ViewportWidth:       defaultViewportWidth,
			ViewportHeight:      defaultViewportHeight,
			ProtocolTimeout:     defaultProtocolTimeout,
			HealthCheckInterval: defaultHealthCheckInterval,
		},
		Render: Render{
			FrameFormat:  defaultFrameFormat,
			FrameQuality: defaultFrameQuality,
			DefaultFPS:   defaultFPS,
		},
		Media: Media{
			AllowExternalURLs: false,
		},
		Encoder: Encoder{
			Binary:      defaultEncoderBinary,
			Codec:       defaultEncoderCodec,
			PixelFormat: defaultPixelFormat,
			Container:   defaultContainer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
