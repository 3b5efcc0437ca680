package testsupport

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// FakeFFmpeg satisfies the ffmpeg runner interface without spawning
// processes. It writes a small file at the command's final argument and
// records every invocation along with the peak number of concurrent calls.
type FakeFFmpeg struct {
	// Delay holds each call open to make overlap observable.
	Delay time.Duration
	// Fail, when set, decides per call whether to fail the invocation.
	Fail func(args []string) bool

	mu       sync.Mutex
	calls    [][]string
	inFlight int
	peak     int
}

// Run implements the runner interface.
func (f *FakeFFmpeg) Run(ctx context.Context, binary string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Fail != nil && f.Fail(args) {
		return fmt.Errorf("%s exited with status 1", binary)
	}
	if len(args) == 0 {
		return nil
	}
	output := args[len(args)-1]
	payload := []byte("fake media: " + strings.Join(args, " "))
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("fake ffmpeg write: %w", err)
	}
	return nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times Run was invoked.
func (f *FakeFFmpeg) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Peak returns the highest number of simultaneous Run calls observed.
func (f *FakeFFmpeg) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// Output returns the path written by an invocation's argument list, with
// any .part suffix removed.
func Output(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSuffix(args[len(args)-1], ".part")
}
