package notifications

import (
	"log/slog"

	"clipper/internal/config"
)

// New builds the configured transports. It returns Noop when neither ntfy
// nor Telegram is configured and a Fanout when both are.
func New(cfg *config.Config, logger *slog.Logger, opts ...TelegramOption) Notifier {
	var notifiers Fanout
	if cfg.Notifications.NtfyTopic != "" {
		notifiers = append(notifiers, NewNtfy(cfg.Notifications.NtfyTopic, cfg.NotificationTimeout()))
	}
	if cfg.TelegramEnabled() {
		notifiers = append(notifiers, NewTelegram(TelegramConfig{
			Token:          cfg.Notifications.TelegramBotToken,
			ChatID:         cfg.Notifications.TelegramChatID,
			APIBase:        cfg.Notifications.TelegramAPIBase,
			MaxUploadBytes: int64(cfg.Notifications.TelegramMaxUploadMB) << 20,
			TextTimeout:    cfg.NotificationTimeout(),
			MediaTimeout:   cfg.DeliveryTimeout(),
		}, logger, opts...))
	}
	switch len(notifiers) {
	case 0:
		return Noop{}
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

// NewSinkFromConfig wires the configured transports behind a Sink.
func NewSinkFromConfig(cfg *config.Config, logger *slog.Logger, opts ...TelegramOption) *Sink {
	return NewSink(New(cfg, logger, opts...), logger, SinkOptions{
		QueueSize: cfg.Notifications.QueueSize,
		Timeout:   cfg.DeliveryTimeout(),
	})
}
