package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/logging"
)

const (
	telegramMessageLimit = 4000
	telegramCaptionLimit = 1024
	telegramHeader       = "<b>Video Clipper</b>"
)

// TelegramConfig holds bot credentials and limits.
type TelegramConfig struct {
	Token          string
	ChatID         string
	APIBase        string
	MaxUploadBytes int64
	TextTimeout    time.Duration
	MediaTimeout   time.Duration
}

// PreviewFunc produces a smaller copy of clipPath and returns its location.
type PreviewFunc func(ctx context.Context, clipPath string) (string, error)

// TelegramOption customizes a Telegram notifier.
type TelegramOption func(*Telegram)

// WithPreview enables downscaled copies for clips over the upload limit.
func WithPreview(fn PreviewFunc) TelegramOption {
	return func(t *Telegram) { t.preview = fn }
}

// WithTelegramHTTPClient replaces both HTTP clients.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		if client != nil {
			t.textClient = client
			t.mediaClient = client
		}
	}
}

// Telegram posts events to a chat through the Bot API: text as HTML
// messages, clips as videos, and transcripts and manifests as documents.
type Telegram struct {
	cfg         TelegramConfig
	textClient  *http.Client
	mediaClient *http.Client
	preview     PreviewFunc
	logger      *slog.Logger
}

// NewTelegram returns a Telegram notifier.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger, opts ...TelegramOption) *Telegram {
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = 15 * time.Second
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = 300 * time.Second
	}
	t := &Telegram{
		cfg:         cfg,
		textClient:  &http.Client{Timeout: cfg.TextTimeout},
		mediaClient: &http.Client{Timeout: cfg.MediaTimeout},
		logger:      logging.NewComponentLogger(logger, "telegram"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Publish implements Notifier.
func (t *Telegram) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	switch event {
	case EventCutJobCompleted:
		caption := payload.String(KeyCaption)
		if caption == "" {
			caption = t.render(event, payload)
		}
		return t.sendClip(ctx, payload.String(KeyPath), caption)
	case EventDraftReady:
		if err := t.SendMessage(ctx, t.render(event, payload)); err != nil {
			errs = append(errs, err)
		}
		for _, clip := range payload.Strings(KeyDocuments) {
			if err := t.sendClip(ctx, clip, html.EscapeString(filepath.Base(clip))); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if err := t.SendMessage(ctx, t.render(event, payload)); err != nil {
		errs = append(errs, err)
	}
	for _, doc := range payload.Strings(KeyDocuments) {
		caption := html.EscapeString(filepath.Base(doc))
		if video := payload.String(KeyVideoName); video != "" {
			caption = fmt.Sprintf("%s - %s", caption, html.EscapeString(video))
		}
		if err := t.sendDocument(ctx, doc, caption); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) render(event Event, payload Payload) string {
	title, body := plainMessage(event, payload)
	var b strings.Builder
	b.WriteString(telegramHeader)
	b.WriteString("\n<b>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</b>")
	if body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(body))
	}
	return b.String()
}

// SendMessage posts an HTML message, truncated to the Bot API limit.
func (t *Telegram) SendMessage(ctx context.Context, text string) error {
	text = truncateRunes(text, telegramMessageLimit, "\n...(truncated)")
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}
	return t.call(ctx, t.textClient, "sendMessage", "application/json", bytes.NewReader(body))
}

func (t *Telegram) sendClip(ctx context.Context, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("telegram clip: %w", err)
	}
	candidate, size := path, info.Size()
	if size > t.cfg.MaxUploadBytes && t.preview != nil {
		preview, previewErr := t.preview(ctx, path)
		switch {
		case previewErr != nil:
			t.logger.Warn("telegram preview failed; sending original",
				logging.String("clip_path", path),
				logging.Error(previewErr),
				logging.EventType("telegram_preview_failed"),
			)
		default:
			if pinfo, statErr := os.Stat(preview); statErr == nil {
				candidate, size = preview, pinfo.Size()
			}
		}
	}
	if size <= t.cfg.MaxUploadBytes {
		fields := map[string]string{"supports_streaming": "true"}
		err := t.sendFile(ctx, "sendVideo", "video", candidate, caption, fields)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		t.logger.Info("telegram rejected video; retrying as document",
			logging.String("clip_path", candidate),
			logging.Error(err),
		)
	}
	return t.sendDocument(ctx, candidate, caption)
}

func (t *Telegram) sendDocument(ctx context.Context, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("telegram document: %w", err)
	}
	if info.Size() > t.cfg.MaxUploadBytes {
		name := filepath.Base(path)
		msg := fmt.Sprintf("%s\nFile too large to send via Telegram (%.1f MB): %s",
			telegramHeader, float64(info.Size())/(1<<20), html.EscapeString(name))
		return t.SendMessage(ctx, msg)
	}
	return t.sendFile(ctx, "sendDocument", "document", path, caption, nil)
}

func (t *Telegram) sendFile(ctx context.Context, method, field, path, caption string, extra map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeMultipart(mw, file, t.cfg.ChatID, field, path, caption, extra))
	}()
	err = t.call(ctx, t.mediaClient, method, mw.FormDataContentType(), reader)
	_ = reader.CloseWithError(io.ErrClosedPipe)
	return err
}

func writeMultipart(mw *multipart.Writer, file io.Reader, chatID, field, path, caption string, extra map[string]string) error {
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", truncateRunes(caption, telegramCaptionLimit, "")); err != nil {
			return err
		}
		if err := mw.WriteField("parse_mode", "HTML"); err != nil {
			return err
		}
	}
	for key, value := range extra {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filepath.Base(path))))
	header.Set("Content-Type", contentTypeFor(path))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) call(ctx context.Context, client *http.Client, method, contentType string, body io.Reader) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.cfg.APIBase, t.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build telegram %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		// The URL embeds the bot token; report only the method.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var decoded telegramResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("telegram %s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !decoded.OK {
		return fmt.Errorf("telegram %s rejected (%d): %s", method, decoded.ErrorCode, decoded.Description)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".md":
		return "text/markdown"
	case ".srt":
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func truncateRunes(text string, limit int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + suffix
}
