package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeCutting()
	c.normalizeUpload()
	c.normalizeS3()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkRoot) == "" {
		c.Paths.WorkRoot = defaultWorkRoot
	}
	if c.Paths.WorkRoot, err = expandPath(c.Paths.WorkRoot); err != nil {
		return fmt.Errorf("paths.work_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDrive() error {
	var err error
	if strings.TrimSpace(c.Drive.ClientSecretPath) == "" {
		c.Drive.ClientSecretPath = defaultDriveClientSecretPath
	}
	if c.Drive.ClientSecretPath, err = expandPath(c.Drive.ClientSecretPath); err != nil {
		return fmt.Errorf("drive.client_secret_path: %w", err)
	}
	if strings.TrimSpace(c.Drive.TokenPath) == "" {
		c.Drive.TokenPath = defaultDriveTokenPath
	}
	if c.Drive.TokenPath, err = expandPath(c.Drive.TokenPath); err != nil {
		return fmt.Errorf("drive.token_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("ASSEMBLYAI_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultAssemblyAIBaseURL
	}
	c.Transcription.SpeechModel = strings.TrimSpace(c.Transcription.SpeechModel)
	c.Transcription.AudioBitrate = strings.TrimSpace(c.Transcription.AudioBitrate)
	if c.Transcription.AudioBitrate == "" {
		c.Transcription.AudioBitrate = defaultAudioBitrate
	}
	if c.Transcription.PollIntervalSeconds <= 0 {
		c.Transcription.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeout
	}
}

func (c *Config) normalizeCutting() {
	c.Cutting.FFmpegBinary = strings.TrimSpace(c.Cutting.FFmpegBinary)
	c.Cutting.FFprobeBinary = strings.TrimSpace(c.Cutting.FFprobeBinary)
	if c.Cutting.MaxAttempts <= 0 {
		c.Cutting.MaxAttempts = defaultMaxAttempts
	}
	if c.Cutting.RetryDelaySeconds < 0 {
		c.Cutting.RetryDelaySeconds = 0
	}
	if c.Cutting.JobTimeoutSeconds <= 0 {
		c.Cutting.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Cutting.MaxClipSeconds <= 0 {
		c.Cutting.MaxClipSeconds = defaultMaxClipSeconds
	}
	if c.Cutting.PreSeekSeconds < 0 {
		c.Cutting.PreSeekSeconds = 0
	}
	if c.Cutting.VerticalWidth <= 0 {
		c.Cutting.VerticalWidth = defaultVerticalWidth
	}
	if c.Cutting.VerticalHeight <= 0 {
		c.Cutting.VerticalHeight = defaultVerticalHeight
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Provider = strings.ToLower(strings.TrimSpace(c.Upload.Provider))
	switch c.Upload.Provider {
	case "none", "disabled", "off":
		c.Upload.Provider = ""
	case "minio":
		c.Upload.Provider = "s3"
	}
}

func (c *Config) normalizeS3() {
	c.S3.Endpoint = strings.TrimSpace(c.S3.Endpoint)
	c.S3.Bucket = strings.TrimSpace(c.S3.Bucket)
	c.S3.Prefix = strings.Trim(strings.TrimSpace(c.S3.Prefix), "/")
	c.S3.AccessKey = strings.TrimSpace(c.S3.AccessKey)
	if c.S3.AccessKey == "" {
		if value, ok := os.LookupEnv("S3_ACCESS_KEY"); ok {
			c.S3.AccessKey = strings.TrimSpace(value)
		}
	}
	c.S3.SecretKey = strings.TrimSpace(c.S3.SecretKey)
	if c.S3.SecretKey == "" {
		if value, ok := os.LookupEnv("S3_SECRET_KEY"); ok {
			c.S3.SecretKey = strings.TrimSpace(value)
		}
	}
	if c.S3.LinkExpiryHours <= 0 {
		c.S3.LinkExpiryHours = defaultS3LinkExpiryHours
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.TelegramBotToken = strings.TrimSpace(c.Notifications.TelegramBotToken)
	if c.Notifications.TelegramBotToken == "" {
		if value, ok := os.LookupEnv("VIDEO_CLIPPER_BOT_TOKEN"); ok {
			c.Notifications.TelegramBotToken = strings.TrimSpace(value)
		}
	}
	c.Notifications.TelegramChatID = strings.TrimSpace(c.Notifications.TelegramChatID)
	if c.Notifications.TelegramChatID == "" {
		if value, ok := os.LookupEnv("VIDEO_CLIPPER_CHAT_ID"); ok {
			c.Notifications.TelegramChatID = strings.TrimSpace(value)
		}
	}
	c.Notifications.TelegramAPIBase = strings.TrimRight(strings.TrimSpace(c.Notifications.TelegramAPIBase), "/")
	if c.Notifications.TelegramAPIBase == "" {
		c.Notifications.TelegramAPIBase = defaultTelegramAPIBase
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = defaultNotifyQueueSize
	}
	if c.Notifications.DrainTimeout <= 0 {
		c.Notifications.DrainTimeout = defaultNotifyDrainTimeout
	}
	if c.Notifications.TelegramMaxUploadMB <= 0 {
		c.Notifications.TelegramMaxUploadMB = defaultTelegramMaxUploadMB
	}
	if c.Notifications.TelegramTimeout <= 0 {
		c.Notifications.TelegramTimeout = defaultTelegramTimeout
	}
	if c.Notifications.PreviewHeight < 0 {
		c.Notifications.PreviewHeight = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
