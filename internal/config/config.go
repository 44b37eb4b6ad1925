package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Audio         AudioConfig         `toml:"audio"`         // Audio capture and segmentation settings
	Transcription TranscriptionConfig `toml:"transcription"` // Speech-to-text settings
	Explain       ExplainConfig       `toml:"explain"`       // Jargon explanation service settings
	Notify        NotifyConfig        `toml:"notify"`        // Desktop notification settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // Data persistence settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the status API and WebSocket endpoint
	Host             string `toml:"host"`                  // Host address to bind to (e.g. 127.0.0.1 for localhost only)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next keep-alive request
}

// AudioConfig contains audio capture and segmentation configuration
type AudioConfig struct {
	FFmpegPath       string  `toml:"ffmpeg_path"`       // Path to the ffmpeg binary (default "ffmpeg", resolved via PATH)
	InputFormat      string  `toml:"input_format"`      // ffmpeg input format: "pulse", "alsa", "dshow" or "avfoundation"
	Device           string  `toml:"device"`            // Capture device name (use a monitor/loopback device for system audio)
	SampleRate       int     `toml:"sample_rate"`       // Sample rate in Hz (16000 works well with Whisper)
	Channels         int     `toml:"channels"`          // Number of channels (1 = mono)
	FrameSize        int     `toml:"frame_size"`        // Samples per capture frame read from ffmpeg
	ChunkSeconds     int     `toml:"chunk_seconds"`     // Duration of each transcription chunk in seconds
	SilenceThreshold float64 `toml:"silence_threshold"` // RMS threshold (int16 scale) below which a chunk is discarded as silent
}

// TranscriptionConfig contains settings for the speech-to-text service
type TranscriptionConfig struct {
	OpenAIAPIKey  string `toml:"openai_api_key"`      // OpenAI API key (falls back to OPENAI_API_KEY env var)
	OpenAIBaseURL string `toml:"openai_api_base_url"` // Optional OpenAI-compatible base URL (e.g. a local whisper server)
	Model         string `toml:"model"`               // Transcription model (e.g. "whisper-1")
	Language      string `toml:"language"`            // Primary language hint (e.g. "en")
	TimeoutSecs   int    `toml:"timeout_seconds"`     // Per-request timeout in seconds
}

// ExplainConfig contains settings for the remote jargon explanation service
type ExplainConfig struct {
	Provider         string `toml:"provider"`             // Explanation provider: "jamai" or "gemini"
	BaseURL          string `toml:"base_url"`             // JamAI rows/add endpoint URL
	APIKey           string `toml:"api_key"`              // Bearer token (falls back to EXPLAIN_API_KEY env var)
	ProjectID        string `toml:"project_id"`           // Project identifier sent in the X-PROJECT-ID header (EXPLAIN_PROJECT_ID env var)
	TableID          string `toml:"table_id"`             // Destination action table (EXPLAIN_TABLE_ID env var)
	GeminiAPIKey     string `toml:"gemini_api_key"`       // Gemini API key, only used when provider = "gemini" (GEMINI_API_KEY env var)
	GeminiModel      string `toml:"gemini_model"`         // Gemini model name (e.g. "gemini-2.0-flash")
	MaxAttempts      int    `toml:"max_attempts"`         // Total attempts per submission including the first
	RetryBaseDelayMs int    `toml:"retry_base_delay_ms"`  // Base delay for exponential backoff in milliseconds
	RetryMaxDelayMs  int    `toml:"retry_max_delay_ms"`   // Upper bound for a single backoff wait (also clamps Retry-After hints)
	Jitter           bool   `toml:"jitter"`               // Apply equal-jitter to computed backoff delays
	TimeoutSecs      int    `toml:"timeout_seconds"`      // Per-attempt request timeout in seconds
	PreserveNewlines bool   `toml:"preserve_line_breaks"` // Keep line breaks in multi-line definition bodies instead of joining with spaces
	MaxTitleLen      int    `toml:"max_title_length"`     // Maximum notification title length; longer titles are truncated
}

// NotifyConfig contains desktop notification configuration
type NotifyConfig struct {
	DesktopEnabled bool   `toml:"desktop_enabled"` // Send notifications to the desktop via notify-send/osascript
	AppName        string `toml:"app_name"`        // Application name shown on notifications
	TimeoutSecs    int    `toml:"timeout_seconds"` // How long a notification stays on screen (where supported)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath     string `toml:"sqlite_path"`       // Path to the SQLite database file
	MaxRecentInAPI int    `toml:"max_recent_in_api"` // Maximum number of records returned by the recent-items API endpoints
	RetentionDays  int    `toml:"retention_days"`    // Delete transcripts older than this many days on startup (0 = keep forever)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnvOverrides()

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// Credentials may live in a .env file next to the binary; a missing file is fine
	_ = godotenv.Load()

	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyEnvOverrides fills credential fields from the environment when the
// config file leaves them empty, so secrets can stay out of config.toml
func (c *Config) applyEnvOverrides() {
	if c.Transcription.OpenAIAPIKey == "" {
		c.Transcription.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Explain.APIKey == "" {
		c.Explain.APIKey = os.Getenv("EXPLAIN_API_KEY")
	}
	if c.Explain.ProjectID == "" {
		c.Explain.ProjectID = os.Getenv("EXPLAIN_PROJECT_ID")
	}
	if c.Explain.TableID == "" {
		c.Explain.TableID = os.Getenv("EXPLAIN_TABLE_ID")
	}
	if c.Explain.GeminiAPIKey == "" {
		c.Explain.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate validates the configuration and applies defaults for unset fields
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateExplain(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8180
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
	if c.Audio.InputFormat == "" {
		c.Audio.InputFormat = "pulse"
	}
	if c.Audio.Device == "" {
		c.Audio.Device = "default"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.SampleRate < 8000 {
		return fmt.Errorf("invalid sample rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("only mono capture is supported, got %d channels", c.Audio.Channels)
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 1024
	}
	if c.Audio.FrameSize < 0 {
		return fmt.Errorf("invalid frame size: %d", c.Audio.FrameSize)
	}
	if c.Audio.ChunkSeconds == 0 {
		c.Audio.ChunkSeconds = 10
	}
	if c.Audio.ChunkSeconds < 1 {
		return fmt.Errorf("invalid chunk duration: %d seconds", c.Audio.ChunkSeconds)
	}
	if c.Audio.SilenceThreshold == 0 {
		c.Audio.SilenceThreshold = 500.0
	}
	if c.Audio.SilenceThreshold < 0 {
		return fmt.Errorf("invalid silence threshold: %f", c.Audio.SilenceThreshold)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Transcription.TimeoutSecs == 0 {
		c.Transcription.TimeoutSecs = 60
	}
	if c.Transcription.TimeoutSecs < 0 {
		return fmt.Errorf("invalid transcription timeout: %d", c.Transcription.TimeoutSecs)
	}
	if c.Transcription.OpenAIAPIKey == "" {
		fmt.Printf("WARN: No OpenAI API key provided - transcription will fail until one is configured\n")
	}
	return nil
}

func (c *Config) validateExplain() error {
	switch c.Explain.Provider {
	case "":
		c.Explain.Provider = "jamai"
	case "jamai", "gemini":
	default:
		return fmt.Errorf("invalid explain provider: %s", c.Explain.Provider)
	}

	if c.Explain.Provider == "jamai" {
		if c.Explain.BaseURL == "" {
			c.Explain.BaseURL = "https://api.jamaibase.com/api/v1/gen_tables/action/rows/add"
		}
		if c.Explain.APIKey == "" || c.Explain.ProjectID == "" || c.Explain.TableID == "" {
			return fmt.Errorf("explain provider %q requires api_key, project_id and table_id", c.Explain.Provider)
		}
	}
	if c.Explain.Provider == "gemini" {
		if c.Explain.GeminiAPIKey == "" {
			return fmt.Errorf("explain provider %q requires gemini_api_key", c.Explain.Provider)
		}
		if c.Explain.GeminiModel == "" {
			c.Explain.GeminiModel = "gemini-2.0-flash"
		}
	}

	if c.Explain.MaxAttempts == 0 {
		c.Explain.MaxAttempts = 3
	}
	if c.Explain.MaxAttempts < 1 {
		return fmt.Errorf("invalid max_attempts: %d", c.Explain.MaxAttempts)
	}
	if c.Explain.RetryBaseDelayMs == 0 {
		c.Explain.RetryBaseDelayMs = 1000
	}
	if c.Explain.RetryBaseDelayMs < 0 {
		return fmt.Errorf("invalid retry_base_delay_ms: %d", c.Explain.RetryBaseDelayMs)
	}
	if c.Explain.RetryMaxDelayMs == 0 {
		c.Explain.RetryMaxDelayMs = 30000
	}
	if c.Explain.RetryMaxDelayMs < c.Explain.RetryBaseDelayMs {
		return fmt.Errorf("retry_max_delay_ms (%d) must be >= retry_base_delay_ms (%d)",
			c.Explain.RetryMaxDelayMs, c.Explain.RetryBaseDelayMs)
	}
	if c.Explain.TimeoutSecs == 0 {
		c.Explain.TimeoutSecs = 30
	}
	if c.Explain.TimeoutSecs < 0 {
		return fmt.Errorf("invalid explain timeout: %d", c.Explain.TimeoutSecs)
	}
	if c.Explain.MaxTitleLen == 0 {
		c.Explain.MaxTitleLen = 64
	}
	if c.Explain.MaxTitleLen < 4 {
		return fmt.Errorf("invalid max_title_length: %d", c.Explain.MaxTitleLen)
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.AppName == "" {
		c.Notify.AppName = "lexwatch"
	}
	if c.Notify.TimeoutSecs == 0 {
		c.Notify.TimeoutSecs = 10
	}
	if c.Notify.TimeoutSecs < 0 {
		return fmt.Errorf("invalid notify timeout: %d", c.Notify.TimeoutSecs)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/lexwatch.db"
	}
	if c.Storage.MaxRecentInAPI == 0 {
		c.Storage.MaxRecentInAPI = 100
	}
	if c.Storage.MaxRecentInAPI < 1 {
		return fmt.Errorf("invalid max_recent_in_api: %d", c.Storage.MaxRecentInAPI)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days: %d", c.Storage.RetentionDays)
	}
	return nil
}
