package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipper/internal/logging"
	"clipper/internal/notifications"
)

type telegramCall struct {
	method  string
	fields  map[string]string
	file    string
	payload map[string]string
}

type fakeTelegram struct {
	mu          sync.Mutex
	calls       []telegramCall
	rejectVideo bool
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if !strings.HasPrefix(r.URL.Path, "/bottest-token/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		call := telegramCall{method: method, fields: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			for key, values := range r.MultipartForm.Value {
				call.fields[key] = values[0]
			}
			for key, files := range r.MultipartForm.File {
				call.fields[key] = files[0].Filename
				call.file = key
			}
		} else {
			_ = json.NewDecoder(r.Body).Decode(&call.payload)
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		if method == "sendVideo" && f.rejectVideo {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: wrong file"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func (f *fakeTelegram) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func newTestTelegram(t *testing.T, fake *fakeTelegram, maxUpload int64, opts ...notifications.TelegramOption) *notifications.Telegram {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return notifications.NewTelegram(notifications.TelegramConfig{
		Token:          "test-token",
		ChatID:         "99",
		APIBase:        server.URL,
		MaxUploadBytes: maxUpload,
	}, logging.NewNop(), opts...)
}

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, n), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestTelegramSendsHTMLMessage(t *testing.T) {
	fake := &fakeTelegram{}
	tg := newTestTelegram(t, fake, 0)
	err := tg.Publish(context.Background(), notifications.EventStageCompleted, notifications.Payload{
		notifications.KeyVideoName: "Q&A <live>.mp4",
		notifications.KeyStage:     "ingest",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0].method != "sendMessage" {
		t.Fatalf("expected one sendMessage, got %v", fake.methods())
	}
	payload := fake.calls[0].payload
	if payload["chat_id"] != "99" || payload["parse_mode"] != "HTML" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if !strings.Contains(payload["text"], "<b>Ingest complete</b>") || !strings.Contains(payload["text"], "Q&amp;A &lt;live&gt;.mp4") {
		t.Fatalf("unexpected text %q", payload["text"])
	}
}

func TestTelegramTruncatesLongMessages(t *testing.T) {
	fake := &fakeTelegram{}
	tg := newTestTelegram(t, fake, 0)
	if err := tg.SendMessage(context.Background(), strings.Repeat("é", 5000)); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	text := fake.calls[0].payload["text"]
	if !strings.HasSuffix(text, "...(truncated)") || len([]rune(text)) != 4000+len([]rune("\n...(truncated)")) {
		t.Fatalf("unexpected truncation, %d runes", len([]rune(text)))
	}
}

func TestTelegramSendsClipAsVideo(t *testing.T) {
	fake := &fakeTelegram{}
	tg := newTestTelegram(t, fake, 1024)
	clip := filepath.Join(t.TempDir(), "clip_01_hook.mp4")
	writeBytes(t, clip, 100)

	err := tg.Publish(context.Background(), notifications.EventCutJobCompleted, notifications.Payload{
		notifications.KeyPath:    clip,
		notifications.KeyCaption: strings.Repeat("c", 2000),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := fake.methods(); len(got) != 1 || got[0] != "sendVideo" {
		t.Fatalf("expected sendVideo, got %v", got)
	}
	call := fake.calls[0]
	if call.fields["video"] != "clip_01_hook.mp4" || call.fields["supports_streaming"] != "true" {
		t.Fatalf("unexpected fields %v", call.fields)
	}
	if len(call.fields["caption"]) != 1024 {
		t.Fatalf("expected caption capped at 1024, got %d", len(call.fields["caption"]))
	}
}

func TestTelegramUsesPreviewForOversizedClip(t *testing.T) {
	fake := &fakeTelegram{}
	dir := t.TempDir()
	preview := filepath.Join(dir, "preview.mp4")
	var previewed string
	tg := newTestTelegram(t, fake, 1024, notifications.WithPreview(func(_ context.Context, clipPath string) (string, error) {
		previewed = clipPath
		writeBytes(t, preview, 512)
		return preview, nil
	}))
	clip := filepath.Join(dir, "clip_02_big.mp4")
	writeBytes(t, clip, 4096)

	if err := tg.Publish(context.Background(), notifications.EventCutJobCompleted, notifications.Payload{notifications.KeyPath: clip}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if previewed != clip {
		t.Fatalf("expected preview of %s, got %q", clip, previewed)
	}
	if got := fake.methods(); len(got) != 1 || got[0] != "sendVideo" {
		t.Fatalf("expected sendVideo of preview, got %v", got)
	}
	if fake.calls[0].fields["video"] != "preview.mp4" {
		t.Fatalf("expected preview upload, got %v", fake.calls[0].fields)
	}
}

func TestTelegramFallsBackToDocumentWhenVideoRejected(t *testing.T) {
	fake := &fakeTelegram{rejectVideo: true}
	tg := newTestTelegram(t, fake, 1024)
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	writeBytes(t, clip, 10)

	if err := tg.Publish(context.Background(), notifications.EventCutJobCompleted, notifications.Payload{notifications.KeyPath: clip}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := fake.methods()
	if len(got) != 2 || got[0] != "sendVideo" || got[1] != "sendDocument" {
		t.Fatalf("expected video then document, got %v", got)
	}
}

func TestTelegramOversizedFileBecomesText(t *testing.T) {
	fake := &fakeTelegram{}
	tg := newTestTelegram(t, fake, 16)
	clip := filepath.Join(t.TempDir(), "huge.mp4")
	writeBytes(t, clip, 64)

	if err := tg.Publish(context.Background(), notifications.EventCutJobCompleted, notifications.Payload{notifications.KeyPath: clip}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := fake.methods()
	if len(got) != 1 || got[0] != "sendMessage" {
		t.Fatalf("expected text fallback, got %v", got)
	}
	if !strings.Contains(fake.calls[0].payload["text"], "File too large") || !strings.Contains(fake.calls[0].payload["text"], "huge.mp4") {
		t.Fatalf("unexpected fallback text %q", fake.calls[0].payload["text"])
	}
}

func TestTelegramSendsDocumentsAfterMessage(t *testing.T) {
	fake := &fakeTelegram{}
	tg := newTestTelegram(t, fake, 1024)
	dir := t.TempDir()
	srt := filepath.Join(dir, "talk.srt")
	md := filepath.Join(dir, "talk_transcript.md")
	writeBytes(t, srt, 10)
	writeBytes(t, md, 10)

	err := tg.Publish(context.Background(), notifications.EventTranscriptionCompleted, notifications.Payload{
		notifications.KeyVideoName: "talk.mp4",
		notifications.KeyDuration:  125.0,
		notifications.KeyWordCount: 300,
		notifications.KeyDocuments: []string{srt, md},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := fake.methods()
	if len(got) != 3 || got[0] != "sendMessage" || got[1] != "sendDocument" || got[2] != "sendDocument" {
		t.Fatalf("unexpected calls %v", got)
	}
	if !strings.Contains(fake.calls[0].payload["text"], "Duration: 2:05 | Words: 300") {
		t.Fatalf("unexpected transcription text %q", fake.calls[0].payload["text"])
	}
	if fake.calls[1].fields["document"] != "talk.srt" {
		t.Fatalf("unexpected document fields %v", fake.calls[1].fields)
	}
}

func TestTelegramReportsAPIRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()
	tg := notifications.NewTelegram(notifications.TelegramConfig{Token: "t", ChatID: "1", APIBase: server.URL}, logging.NewNop())
	err := tg.SendMessage(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}
