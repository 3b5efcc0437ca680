package manifest

import (
	"fmt"

	"clipper/internal/workdir"
)

// Clip is one externally identified time range to cut.
type Clip struct {
	ID            int      `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	StartTime     float64  `json:"start_time" yaml:"start_time"`
	EndTime       float64  `json:"end_time" yaml:"end_time"`
	CropX         *int     `json:"crop_x,omitempty" yaml:"crop_x,omitempty"`
	ViralityScore float64  `json:"virality_score,omitempty" yaml:"virality_score,omitempty"`
	Platform      string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Hook          string   `json:"hook,omitempty" yaml:"hook,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Duration returns EndTime - StartTime in seconds.
func (c Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// TitleSlug is the filesystem-safe form of the title used in output names.
func (c Clip) TitleSlug() string {
	return workdir.Slugify(c.Title, workdir.TitleSlugLength)
}

// Manifest is a validated, ordered clip list.
type Manifest struct {
	Path     string
	Clips    []Clip
	Warnings []Warning
}

// Warning describes a pass-through value outside the known taxonomy.
type Warning struct {
	ClipID int
	Field  string
	Value  string
}

func (w Warning) String() string {
	return fmt.Sprintf("clip %d: unknown %s %q", w.ClipID, w.Field, w.Value)
}

// Find returns the clip with id.
func (m *Manifest) Find(id int) (Clip, bool) {
	for _, clip := range m.Clips {
		if clip.ID == id {
			return clip, true
		}
	}
	return Clip{}, false
}

// Top returns the highest-scored clip. Ties go to the clip that starts
// earliest in the source, then to the lowest id.
func (m *Manifest) Top() (Clip, bool) {
	if m == nil || len(m.Clips) == 0 {
		return Clip{}, false
	}
	best := m.Clips[0]
	for _, clip := range m.Clips[1:] {
		if outranks(clip, best) {
			best = clip
		}
	}
	return best, true
}

func outranks(a, b Clip) bool {
	switch {
	case a.ViralityScore != b.ViralityScore:
		return a.ViralityScore > b.ViralityScore
	case a.StartTime != b.StartTime:
		return a.StartTime < b.StartTime
	default:
		return a.ID < b.ID
	}
}

// IDs lists clip ids in manifest order.
func (m *Manifest) IDs() []int {
	ids := make([]int, 0, len(m.Clips))
	for _, clip := range m.Clips {
		ids = append(ids, clip.ID)
	}
	return ids
}
