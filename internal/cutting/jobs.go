package cutting

import (
	"fmt"
	"sort"
	"time"

	"clipper/internal/manifest"
	"clipper/internal/state"
	"clipper/internal/workdir"
)

// Job is one (clip, variant) cutting invocation. It is owned by exactly one
// worker while it runs.
type Job struct {
	Key    state.JobKey
	Title  string
	Score  float64
	Source string
	Output string
	Start  float64
	End    float64
	CropX  *int
}

// Vertical reports whether the job renders the 9:16 variant.
func (j Job) Vertical() bool { return j.Key.Variant == state.VariantVertical }

// Status is a job's terminal state within one batch.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// JobResult is the terminal outcome of one job.
type JobResult struct {
	Job      Job
	Status   Status
	Attempts int
	Err      error
	Output   state.Artifact
	Elapsed  time.Duration
}

// OK reports whether the job's output exists after the batch.
func (r JobResult) OK() bool {
	return r.Status == StatusSucceeded || r.Status == StatusSkipped
}

// BuildJobs expands clips into jobs: a horizontal job per clip plus a
// vertical one when vertical is set.
func BuildJobs(clips []manifest.Clip, layout workdir.Layout, source string, vertical bool) []Job {
	jobs := make([]Job, 0, len(clips)*2)
	for _, clip := range clips {
		variants := []state.Variant{state.VariantHorizontal}
		if vertical {
			variants = append(variants, state.VariantVertical)
		}
		for _, variant := range variants {
			jobs = append(jobs, Job{
				Key:    state.JobKey{ClipID: clip.ID, Variant: variant},
				Title:  clip.Title,
				Score:  clip.ViralityScore,
				Source: source,
				Output: layout.ClipPath(clip.ID, clip.Title, variant == state.VariantVertical),
				Start:  clip.StartTime,
				End:    clip.EndTime,
				CropX:  clip.CropX,
			})
		}
	}
	return jobs
}

// Partition splits jobs into those still to run and results for jobs whose
// recorded output is done and still verifies on disk.
func Partition(st *state.PipelineState, jobs []Job) (pending []Job, skipped []JobResult) {
	for _, job := range jobs {
		rec, ok := st.CutRecord(job.Key)
		if ok && rec.Done && rec.Output.Path == job.Output && rec.Output.Valid() {
			skipped = append(skipped, JobResult{Job: job, Status: StatusSkipped, Attempts: rec.Attempts, Output: rec.Output})
			continue
		}
		pending = append(pending, job)
	}
	return pending, skipped
}

// Batch collects the results of one scheduler run.
type Batch struct {
	Results []JobResult
}

// Failed returns results that did not produce output.
func (b Batch) Failed() []JobResult {
	var out []JobResult
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many results have status.
func (b Batch) Count(status Status) int {
	n := 0
	for _, r := range b.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Summary renders "N/M jobs cut" plus failing keys.
func (b Batch) Summary() string {
	ok := len(b.Results) - len(b.Failed())
	text := fmt.Sprintf("%d/%d jobs cut", ok, len(b.Results))
	if failed := b.Failed(); len(failed) > 0 {
		text += "; failed:"
		for _, r := range failed {
			text += " " + r.Job.Key.String()
		}
	}
	return text
}

func sortResults(results []JobResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Job.Key, results[j].Job.Key
		if a.ClipID != b.ClipID {
			return a.ClipID < b.ClipID
		}
		return a.Variant == state.VariantHorizontal && b.Variant != state.VariantHorizontal
	})
}
