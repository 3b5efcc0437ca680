package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "clipper/0.1"

// ntfySuppressed lists events that carry files or are too chatty for push
// notifications.
var ntfySuppressed = map[Event]struct{}{
	EventStageStarted:    {},
	EventClipsSummary:    {},
	EventCutJobCompleted: {},
}

type ntfyMessage struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy publishes text events to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy returns an ntfy notifier posting to topic.
func NewNtfy(topic string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: strings.TrimSpace(topic),
		client:   &http.Client{Timeout: timeout},
	}
}

// Publish implements Notifier.
func (n *Ntfy) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.endpoint == "" {
		return nil
	}
	if _, skip := ntfySuppressed[event]; skip {
		return nil
	}
	title, body := plainMessage(event, payload)
	msg := ntfyMessage{
		title:   "Clipper - " + title,
		message: body,
		tags:    []string{"clipper", string(event)},
	}
	switch event {
	case EventError, EventCutJobFailed:
		msg.priority = "high"
		msg.tags = append(msg.tags, "alert")
	case EventRunCompleted:
		if payload.Int(KeyFailed) > 0 {
			msg.priority = "high"
		}
	case EventTest:
		msg.priority = "low"
	}
	return n.send(ctx, msg)
}

func (n *Ntfy) send(ctx context.Context, data ntfyMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
