package cutting

import "clipper/internal/state"

// clipTracker counts outstanding variants per clip so the collector reports
// each clip exactly once, after all of its requested variants succeeded.
type clipTracker struct {
	remaining map[int]map[state.Variant]struct{}
	first     map[int]Job
}

func newClipTracker(jobs []Job, skipped []JobResult) *clipTracker {
	t := &clipTracker{
		remaining: make(map[int]map[state.Variant]struct{}),
		first:     make(map[int]Job),
	}
	for _, job := range jobs {
		id := job.Key.ClipID
		if t.remaining[id] == nil {
			t.remaining[id] = make(map[state.Variant]struct{})
		}
		t.remaining[id][job.Key.Variant] = struct{}{}
		if _, ok := t.first[id]; !ok || job.Key.Variant == state.VariantHorizontal {
			t.first[id] = job
		}
	}
	for _, r := range skipped {
		delete(t.remaining[r.Job.Key.ClipID], r.Job.Key.Variant)
	}
	return t
}

// markDone records key as finished and returns the clip's job when it was
// the clip's last outstanding variant.
func (t *clipTracker) markDone(key state.JobKey) (Job, bool) {
	variants, ok := t.remaining[key.ClipID]
	if !ok {
		return Job{}, false
	}
	if _, pending := variants[key.Variant]; !pending {
		return Job{}, false
	}
	delete(variants, key.Variant)
	if len(variants) > 0 {
		return Job{}, false
	}
	delete(t.remaining, key.ClipID)
	return t.first[key.ClipID], true
}
