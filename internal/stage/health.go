package stage

import (
	"context"
	"fmt"
)

// Health is a handler's answer to whether it could run right now.
type Health struct {
	Stage  Name
	Ready  bool
	Detail string
}

// Ready reports a stage with every collaborator in place.
func Ready(name Name) Health {
	return Health{Stage: name, Ready: true}
}

// NotReady reports what keeps a stage from running.
func NotReady(name Name, detail string) Health {
	return Health{Stage: name, Detail: detail}
}

// Err is nil for a ready stage.
func (h Health) Err() error {
	if h.Ready {
		return nil
	}
	if h.Detail == "" {
		return fmt.Errorf("%s stage not ready", h.Stage)
	}
	return fmt.Errorf("%s stage not ready: %s", h.Stage, h.Detail)
}

// CheckAll asks each non-nil handler for its health, in order.
func CheckAll(ctx context.Context, handlers ...Handler) []Health {
	out := make([]Health, 0, len(handlers))
	for _, h := range handlers {
		if h == nil {
			continue
		}
		out = append(out, h.HealthCheck(ctx))
	}
	return out
}
