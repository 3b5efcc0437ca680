package stage

import (
	"context"
	"strings"
	"testing"
)

type healthOnly struct {
	Handler
	health Health
}

func (h healthOnly) HealthCheck(context.Context) Health { return h.health }

func TestHealthErr(t *testing.T) {
	if err := Ready(Cut).Err(); err != nil {
		t.Fatalf("ready stage returned %v", err)
	}
	err := NotReady(Upload, "drive token missing").Err()
	if err == nil || !strings.Contains(err.Error(), "upload stage not ready: drive token missing") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := (Health{Stage: Ingest}).Err(); err == nil || strings.Contains(err.Error(), ":") {
		t.Fatalf("expected bare not-ready error, got %v", err)
	}
}

func TestCheckAllSkipsNilHandlers(t *testing.T) {
	got := CheckAll(context.Background(),
		healthOnly{health: Ready(Ingest)},
		nil,
		healthOnly{health: NotReady(Cut, "scheduler not configured")},
	)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if !got[0].Ready || got[1].Ready || got[1].Stage != Cut {
		t.Fatalf("unexpected results %+v", got)
	}
}
