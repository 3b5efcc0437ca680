package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"clipper/internal/services"
)

// ErrNotFound reports that no manifest exists yet; the pipeline pauses on it.
var ErrNotFound = errors.New("clip manifest not found")

// Patterns searched, in order, when no explicit manifest path is given.
var discoveryPatterns = []string{"*_clips.json", "*_clips.yaml", "*_clips.yml"}

// Limits bound clip times during validation.
type Limits struct {
	// SourceDuration is the video length in seconds; zero skips the upper bound.
	SourceDuration float64
	// MaxClipSeconds rejects clips longer than this; zero disables the check.
	MaxClipSeconds float64
}

// Discover returns explicit when set, otherwise the first manifest file in
// dir. ErrNotFound is returned when nothing matches.
func Discover(dir, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, explicit)
			}
			return "", fmt.Errorf("stat manifest: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("manifest %s is a directory", explicit)
		}
		return explicit, nil
	}
	for _, pattern := range discoveryPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", fmt.Errorf("search manifests: %w", err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
				return match, nil
			}
		}
	}
	return "", fmt.Errorf("%w in %s (expected <name>_clips.json or <name>_clips.yaml)", ErrNotFound, dir)
}

// Load reads, parses and validates the manifest at path.
func Load(path string, limits Limits) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, services.Wrap(services.ErrManifest, "cut", "read manifest", path, err)
	}
	m, err := Parse(data, formatFor(path), limits)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse decodes data as "json" or "yaml" and validates it.
func Parse(data []byte, format string, limits Limits) (*Manifest, error) {
	var doc document
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, services.Wrap(services.ErrManifest, "cut", "parse manifest", "invalid JSON", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, services.Wrap(services.ErrManifest, "cut", "parse manifest", "invalid YAML", err)
		}
	default:
		return nil, services.Wrap(services.ErrManifest, "cut", "parse manifest", fmt.Sprintf("unsupported format %q", format), nil)
	}
	return validate(doc, limits)
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

type document struct {
	Clips []rawClip `json:"clips" yaml:"clips"`
}

// rawClip uses pointers so absent required fields can be told apart from zero.
type rawClip struct {
	ID            *int     `json:"id" yaml:"id"`
	Title         *string  `json:"title" yaml:"title"`
	StartTime     *float64 `json:"start_time" yaml:"start_time"`
	EndTime       *float64 `json:"end_time" yaml:"end_time"`
	CropX         *int     `json:"crop_x" yaml:"crop_x"`
	ViralityScore float64  `json:"virality_score" yaml:"virality_score"`
	Platform      string   `json:"platform" yaml:"platform"`
	Category      string   `json:"category" yaml:"category"`
	Tags          []string `json:"tags" yaml:"tags"`
	Hook          string   `json:"hook" yaml:"hook"`
	Description   string   `json:"description" yaml:"description"`
}
