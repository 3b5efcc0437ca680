package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCutting(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCutting() error {
	if err := ensurePositiveMap(map[string]int{
		"cutting.workers":             c.Cutting.Workers,
		"cutting.max_attempts":        c.Cutting.MaxAttempts,
		"cutting.job_timeout_seconds": c.Cutting.JobTimeoutSeconds,
		"cutting.vertical_width":      c.Cutting.VerticalWidth,
		"cutting.vertical_height":     c.Cutting.VerticalHeight,
	}); err != nil {
		return err
	}
	if c.Cutting.HorizontalCRF < 0 || c.Cutting.HorizontalCRF > 51 {
		return errors.New("cutting.horizontal_crf must be between 0 and 51")
	}
	if c.Cutting.VerticalCRF < 0 || c.Cutting.VerticalCRF > 51 {
		return errors.New("cutting.vertical_crf must be between 0 and 51")
	}
	if c.Cutting.VerticalWidth%2 != 0 || c.Cutting.VerticalHeight%2 != 0 {
		return errors.New("cutting.vertical_width and cutting.vertical_height must be even")
	}
	return nil
}

func (c *Config) validateUpload() error {
	switch c.Upload.Provider {
	case "", "drive":
		return nil
	case "s3":
		if c.S3.Endpoint == "" {
			return errors.New("s3.endpoint must be set when upload.provider is s3")
		}
		if strings.Contains(c.S3.Endpoint, "://") {
			return errors.New("s3.endpoint must be a host[:port] without scheme")
		}
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket must be set when upload.provider is s3")
		}
		if c.S3.LinkExpiryHours > maxS3LinkExpiryHours {
			return fmt.Errorf("s3.link_expiry_hours must be at most %d", maxS3LinkExpiryHours)
		}
		return nil
	default:
		return fmt.Errorf("upload.provider %q is not supported (use drive, s3, or leave empty)", c.Upload.Provider)
	}
}

func (c *Config) validateNotifications() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"notifications.queue_size":      c.Notifications.QueueSize,
		"notifications.drain_timeout":   c.Notifications.DrainTimeout,
	}); err != nil {
		return err
	}
	if c.Notifications.TelegramMaxUploadMB > defaultTelegramMaxUploadHardMB {
		return fmt.Errorf("notifications.telegram_max_upload_mb must be at most %d", defaultTelegramMaxUploadHardMB)
	}
	if (c.Notifications.TelegramBotToken == "") != (c.Notifications.TelegramChatID == "") {
		return errors.New("notifications.telegram_bot_token and notifications.telegram_chat_id must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
