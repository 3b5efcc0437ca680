package testsupport

import (
	"context"
	"testing"

	"clipper/internal/state"
	"clipper/internal/workdir"
)

// MustLayout creates the work directory for slug under root.
func MustLayout(t testing.TB, root, slug string) workdir.Layout {
	t.Helper()
	layout := workdir.New(root, slug)
	if err := layout.Ensure(); err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	return layout
}

// MustOpenStore opens the state store inside layout and registers cleanup.
func MustOpenStore(t testing.TB, layout workdir.Layout) *state.Store {
	t.Helper()
	store, err := state.Open(context.Background(), layout.StatePath(), layout.Slug)
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
