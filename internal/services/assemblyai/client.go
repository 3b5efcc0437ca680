package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"clipper/internal/services"
)

const (
	defaultBaseURL        = "https://api.assemblyai.com"
	defaultHTTPTimeout    = 10 * time.Minute
	defaultPollInterval   = 5 * time.Second
	defaultWaitTimeout    = time.Hour
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 15 * time.Second
)

// Config captures the settings needed to talk to AssemblyAI.
type Config struct {
	APIKey        string
	BaseURL       string
	SpeechModel   string
	SpeakerLabels bool
	PollInterval  time.Duration
	Timeout       time.Duration
}

// Client wraps the AssemblyAI v2 upload and transcript endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry attempts and delays for transient
// HTTP failures.
func WithRetryBackoff(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// NewClient constructs a client, filling defaults for unset fields.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWaitTimeout
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("assemblyai request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Transcribe uploads the audio file, submits it, and waits for the result.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	uploadURL, err := c.Upload(ctx, audioPath)
	if err != nil {
		return Transcript{}, err
	}
	id, err := c.Submit(ctx, uploadURL)
	if err != nil {
		return Transcript{}, err
	}
	return c.Wait(ctx, id)
}

// Upload sends audio bytes and returns the private URL the transcript
// request refers to.
func (c *Client) Upload(ctx context.Context, audioPath string) (string, error) {
	if err := c.requireKey("upload"); err != nil {
		return "", err
	}
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	err := c.withRetry(ctx, func() error {
		f, err := os.Open(audioPath)
		if err != nil {
			return services.Wrap(services.ErrTranscription, "transcribe", "open audio", audioPath, err)
		}
		defer f.Close()
		return c.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", f, &out)
	})
	if err != nil {
		return "", classify("upload audio", err)
	}
	if out.UploadURL == "" {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "upload audio", "response missing upload_url", nil)
	}
	return out.UploadURL, nil
}

// Submit requests a transcript for audioURL and returns its id.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	if err := c.requireKey("submit"); err != nil {
		return "", err
	}
	request := map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": c.cfg.SpeakerLabels,
	}
	if c.cfg.SpeechModel != "" {
		request["speech_model"] = c.cfg.SpeechModel
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("assemblyai submit: encode body: %w", err)
	}
	var out Transcript
	err = c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(encoded), &out)
	})
	if err != nil {
		return "", classify("submit transcript", err)
	}
	if out.ID == "" {
		return "", services.Wrap(services.ErrTranscription, "transcribe", "submit transcript", "response missing id", nil)
	}
	return out.ID, nil
}

// Get fetches the current transcript document.
func (c *Client) Get(ctx context.Context, id string) (Transcript, error) {
	var out Transcript
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(id), "", nil, &out)
	})
	if err != nil {
		return Transcript{}, classify("poll transcript", err)
	}
	return out, nil
}

// Wait polls until the transcript completes or fails. Exceeding the
// configured timeout yields a retryable ErrTimeout.
func (c *Client) Wait(ctx context.Context, id string) (Transcript, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		t, err := c.Get(waitCtx, id)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return Transcript{}, c.timeoutError(id)
			}
			return Transcript{}, err
		}
		switch t.Status {
		case StatusCompleted:
			return t, nil
		case StatusError:
			return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "provider", fmt.Sprintf("transcript %s failed: %s", id, t.Error), nil)
		}
		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return Transcript{}, ctx.Err()
			}
			return Transcript{}, c.timeoutError(id)
		}
	}
}

// HealthCheck verifies the API key by listing one transcript.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.requireKey("health"); err != nil {
		return err
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v2/transcript?limit=1", "", nil, &out); err != nil {
		return classify("health", err)
	}
	return nil
}

func (c *Client) timeoutError(id string) error {
	return services.Wrap(services.ErrTimeout, "transcribe", "poll transcript",
		fmt.Sprintf("transcript %s not ready after %s", id, c.cfg.Timeout), services.ErrTranscription)
}

func (c *Client) requireKey(op string) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "transcribe", op, "AssemblyAI API key required (ASSEMBLYAI_API_KEY)", nil)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("assemblyai request: new request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("assemblyai request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: time.Duration(retryAfter) * time.Second,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("assemblyai request: decode response: %w", err)
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError {
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, c.retryMaxDelay), true
			}
			return c.backoff(attempt), true
		}
		return 0, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt && delay < c.retryMaxDelay; i++ {
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		delay = c.retryMaxDelay
	}
	return max(delay, 0)
}

func classify(op string, err error) error {
	if errors.Is(err, services.ErrTranscription) || errors.Is(err, services.ErrConfiguration) {
		return err
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "transcribe", op, "AssemblyAI rejected the API key", errors.Join(services.ErrTranscription, err))
		case statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTranscription, "transcribe", op, "", errors.Join(services.ErrTransient, err))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTranscription, "transcribe", op, "", errors.Join(services.ErrTimeout, err))
	}
	return services.Wrap(services.ErrTranscription, "transcribe", op, "", err)
}
