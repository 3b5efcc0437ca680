package preflight

import (
	"context"

	"clipper/internal/config"
	"clipper/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Needs selects which checks apply to a run.
type Needs struct {
	Transcription bool
	Cutting       bool
	Upload        bool
}

// RunAll executes the local checks a run with the given needs depends on.
// Nothing here talks to the network.
func RunAll(ctx context.Context, cfg *config.Config, needs Needs) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Work directory", cfg.Paths.WorkRoot)}
	if needs.Transcription || needs.Cutting {
		for _, status := range CheckSystemDeps(ctx, cfg) {
			results = append(results, fromStatus(status))
		}
	}
	if needs.Transcription {
		results = append(results, CheckTranscriptionKey(cfg))
	}
	if needs.Upload {
		results = append(results, CheckUploadConfig(cfg))
	}
	return results
}

// Failed filters results down to the failing checks.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fromStatus(s deps.Status) Result {
	if s.Available {
		return Result{Name: s.Name, Passed: true, Detail: s.Path}
	}
	return Result{Name: s.Name, Passed: s.Optional, Detail: s.Detail}
}
