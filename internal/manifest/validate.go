package manifest

import (
	"fmt"
	"math"
	"strings"

	"clipper/internal/services"
)

var knownPlatforms = map[string]struct{}{
	"tiktok":          {},
	"youtube_shorts":  {},
	"instagram_reels": {},
	"x":               {},
	"linkedin":        {},
	"facebook":        {},
	"all":             {},
}

var knownCategories = map[string]struct{}{
	"humor":         {},
	"insight":       {},
	"story":         {},
	"emotional":     {},
	"controversial": {},
	"educational":   {},
	"inspirational": {},
	"hot_take":      {},
}

// ManifestError rejects a whole manifest. ClipID is zero for document-level
// problems and for clips missing an id (Index then locates the entry).
type ManifestError struct {
	ClipID int
	Index  int
	Reason string
}

func (e *ManifestError) Error() string {
	if e.ClipID > 0 {
		return fmt.Sprintf("invalid clip manifest: clip %d: %s", e.ClipID, e.Reason)
	}
	if e.Index > 0 {
		return fmt.Sprintf("invalid clip manifest: entry %d: %s", e.Index, e.Reason)
	}
	return "invalid clip manifest: " + e.Reason
}

func (e *ManifestError) Unwrap() error { return services.ErrManifest }

func validate(doc document, limits Limits) (*Manifest, error) {
	if len(doc.Clips) == 0 {
		return nil, &ManifestError{Reason: "no clips defined"}
	}
	m := &Manifest{Clips: make([]Clip, 0, len(doc.Clips))}
	seen := make(map[int]struct{}, len(doc.Clips))

	for idx, raw := range doc.Clips {
		entry := idx + 1
		if raw.ID == nil {
			return nil, &ManifestError{Index: entry, Reason: "missing id"}
		}
		id := *raw.ID
		fail := func(format string, args ...any) error {
			return &ManifestError{ClipID: id, Index: entry, Reason: fmt.Sprintf(format, args...)}
		}
		if id <= 0 {
			return nil, &ManifestError{Index: entry, Reason: fmt.Sprintf("id %d must be positive", id)}
		}
		if _, dup := seen[id]; dup {
			return nil, fail("duplicate id")
		}
		seen[id] = struct{}{}

		if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
			return nil, fail("missing title")
		}
		if raw.StartTime == nil {
			return nil, fail("missing start_time")
		}
		if raw.EndTime == nil {
			return nil, fail("missing end_time")
		}

		clip := Clip{
			ID:            id,
			Title:         strings.TrimSpace(*raw.Title),
			StartTime:     *raw.StartTime,
			EndTime:       *raw.EndTime,
			CropX:         raw.CropX,
			ViralityScore: raw.ViralityScore,
			Platform:      strings.ToLower(strings.TrimSpace(raw.Platform)),
			Category:      strings.ToLower(strings.TrimSpace(raw.Category)),
			Tags:          raw.Tags,
			Hook:          raw.Hook,
			Description:   raw.Description,
		}
		if clip.TitleSlug() == "" {
			return nil, fail("title %q has no filesystem-safe characters", clip.Title)
		}
		if !finite(clip.StartTime) {
			return nil, fail("start_time %v is not a finite number", clip.StartTime)
		}
		if !finite(clip.EndTime) {
			return nil, fail("end_time %v is not a finite number", clip.EndTime)
		}
		if clip.StartTime < 0 {
			return nil, fail("start_time %.3f is negative", clip.StartTime)
		}
		if clip.EndTime <= clip.StartTime {
			return nil, fail("end_time %.3f must be after start_time %.3f", clip.EndTime, clip.StartTime)
		}
		if limits.SourceDuration > 0 && clip.EndTime > limits.SourceDuration {
			return nil, fail("end_time %.3f exceeds source duration %.3f", clip.EndTime, limits.SourceDuration)
		}
		if limits.MaxClipSeconds > 0 && clip.Duration() > limits.MaxClipSeconds {
			return nil, fail("duration %.1fs exceeds the %.0fs ceiling", clip.Duration(), limits.MaxClipSeconds)
		}
		if clip.CropX != nil && *clip.CropX < 0 {
			return nil, fail("crop_x %d is negative", *clip.CropX)
		}

		if !finite(clip.ViralityScore) {
			return nil, fail("virality_score %v is not a finite number", clip.ViralityScore)
		}
		if clip.ViralityScore < 0 || clip.ViralityScore > 10 {
			m.Warnings = append(m.Warnings, Warning{ClipID: id, Field: "virality_score", Value: fmt.Sprintf("%g", clip.ViralityScore)})
		}
		if clip.Platform != "" {
			if _, ok := knownPlatforms[clip.Platform]; !ok {
				m.Warnings = append(m.Warnings, Warning{ClipID: id, Field: "platform", Value: clip.Platform})
			}
		}
		if clip.Category != "" {
			if _, ok := knownCategories[clip.Category]; !ok {
				m.Warnings = append(m.Warnings, Warning{ClipID: id, Field: "category", Value: clip.Category})
			}
		}
		m.Clips = append(m.Clips, clip)
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
