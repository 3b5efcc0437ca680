package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkRoot string `toml:"work_root"`
	LogDir   string `toml:"log_dir"`
}

// Drive contains Google Drive OAuth configuration used for fetching sources
// and uploading clips.
type Drive struct {
	ClientSecretPath string `toml:"client_secret_path"`
	TokenPath        string `toml:"token_path"`
}

// Transcription contains configuration for the AssemblyAI transcription provider.
type Transcription struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	SpeechModel         string `toml:"speech_model"`
	SpeakerLabels       bool   `toml:"speaker_labels"`
	AudioBitrate        string `toml:"audio_bitrate"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Cutting contains configuration for the parallel clip cutter.
type Cutting struct {
	Workers           int     `toml:"workers"`
	Vertical          bool    `toml:"vertical"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelaySeconds int     `toml:"retry_delay_seconds"`
	JobTimeoutSeconds int     `toml:"job_timeout_seconds"`
	MaxClipSeconds    float64 `toml:"max_clip_seconds"`
	PreSeekSeconds    float64 `toml:"pre_seek_seconds"`
	HorizontalCRF     int     `toml:"horizontal_crf"`
	VerticalCRF       int     `toml:"vertical_crf"`
	VerticalWidth     int     `toml:"vertical_width"`
	VerticalHeight    int     `toml:"vertical_height"`
	FFmpegBinary      string  `toml:"ffmpeg_binary"`
	FFprobeBinary     string  `toml:"ffprobe_binary"`
}

// Upload selects and tunes the storage upload provider.
type Upload struct {
	// Provider is one of "drive", "s3", or "" (uploads disabled).
	Provider          string `toml:"provider"`
	MakePublic        bool   `toml:"make_public"`
	UploadTranscripts bool   `toml:"upload_transcripts"`
}

// S3 contains configuration for S3-compatible object storage uploads.
type S3 struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	UseSSL          bool   `toml:"use_ssl"`
	LinkExpiryHours int    `toml:"link_expiry_hours"`
}

// Notifications contains configuration for the ntfy and Telegram channels.
type Notifications struct {
	NtfyTopic           string `toml:"ntfy_topic"`
	RequestTimeout      int    `toml:"request_timeout"`
	QueueSize           int    `toml:"queue_size"`
	DrainTimeout        int    `toml:"drain_timeout"`
	TelegramBotToken    string `toml:"telegram_bot_token"`
	TelegramChatID      string `toml:"telegram_chat_id"`
	TelegramAPIBase     string `toml:"telegram_api_base"`
	TelegramMaxUploadMB int    `toml:"telegram_max_upload_mb"`
	TelegramTimeout     int    `toml:"telegram_timeout"`
	PreviewHeight       int    `toml:"preview_height"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipper.
//
// Configuration sections by subsystem:
//   - Paths: work directory root and log directory
//   - Drive: OAuth client secret and token locations
//   - Transcription: AssemblyAI credentials and polling limits
//   - Cutting: worker pool size, retry policy, ffmpeg encoding knobs
//   - Upload: provider selection (drive, s3) and sharing behaviour
//   - S3: object storage endpoint and credentials
//   - Notifications: ntfy topic and Telegram bot settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Drive         Drive         `toml:"drive"`
	Transcription Transcription `toml:"transcription"`
	Cutting       Cutting       `toml:"cutting"`
	Upload        Upload        `toml:"upload"`
	S3            S3            `toml:"s3"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for audio extraction and cutting.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Cutting.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Cutting.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.Notifications.TelegramBotToken != "" && c.Notifications.TelegramChatID != ""
}

// NotificationTimeout returns the per-delivery timeout for notification transports.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// LinkExpiry returns how long presigned object links stay valid.
func (c *Config) LinkExpiry() time.Duration {
	return time.Duration(c.S3.LinkExpiryHours) * time.Hour
}

// DrainTimeout bounds how long shutdown waits for queued notifications.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.Notifications.DrainTimeout) * time.Second
}

// DeliveryTimeout bounds one notification delivery across every transport.
// Telegram media uploads get their longer timeout when Telegram is enabled.
func (c *Config) DeliveryTimeout() time.Duration {
	timeout := c.NotificationTimeout()
	if c.TelegramEnabled() {
		if media := time.Duration(c.Notifications.TelegramTimeout) * time.Second; media > timeout {
			timeout = media
		}
	}
	return timeout
}

// JobTimeout returns the per-attempt timeout for one cutting invocation.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Cutting.JobTimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between cutting attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Cutting.RetryDelaySeconds) * time.Second
}

// TranscriptionTimeout returns the overall bound on waiting for a transcript.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// PollInterval returns the transcript polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transcription.PollIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
