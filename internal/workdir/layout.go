package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	clipsDirName  = "clips"
	stateFileName = "state.db"
	lockFileName  = ".clipper.lock"
)

// PreviewDirName is the clips subdirectory holding chat previews.
const PreviewDirName = "telegram"

// Layout names every path inside one video's work directory.
type Layout struct {
	Root string
	Slug string
	Dir  string
}

// New returns the layout for slug beneath root.
func New(root, slug string) Layout {
	return Layout{Root: root, Slug: slug, Dir: filepath.Join(root, slug)}
}

// ForVideo derives the slug from a video file name (extension dropped) and
// returns its layout.
func ForVideo(root, videoName string) (Layout, error) {
	base := strings.TrimSuffix(filepath.Base(videoName), filepath.Ext(videoName))
	slug := Slugify(base, DirSlugLength)
	if slug == "" {
		return Layout{}, fmt.Errorf("video name %q yields an empty slug", videoName)
	}
	return New(root, slug), nil
}

// Ensure creates the work directory and its clips subdirectory.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Dir, l.ClipsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create work directory %q: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether the work directory has been created.
func (l Layout) Exists() bool {
	info, err := os.Stat(l.Dir)
	return err == nil && info.IsDir()
}

func (l Layout) Path(name string) string { return filepath.Join(l.Dir, name) }

func (l Layout) ClipsDir() string { return filepath.Join(l.Dir, clipsDirName) }

// PreviewDir holds downscaled copies sent to chat channels.
func (l Layout) PreviewDir() string { return filepath.Join(l.ClipsDir(), PreviewDirName) }

func (l Layout) StatePath() string { return filepath.Join(l.Dir, stateFileName) }

func (l Layout) LockPath() string { return filepath.Join(l.Dir, lockFileName) }

// VideoPath is where the ingested source lives inside the work directory.
func (l Layout) VideoPath(videoName string) string {
	return filepath.Join(l.Dir, filepath.Base(videoName))
}

func (l Layout) AudioPath(videoName string) string {
	return l.Path(baseName(videoName) + ".mp3")
}

func (l Layout) SubtitlePath(videoName string) string {
	return l.Path(baseName(videoName) + ".srt")
}

func (l Layout) TranscriptPath(videoName string) string {
	return l.Path(baseName(videoName) + "_transcript.md")
}

// TranscriptDataPath holds the raw utterance data the text renderings derive from.
func (l Layout) TranscriptDataPath(videoName string) string {
	return l.Path(baseName(videoName) + "_transcript.json")
}

// ClipPath returns the deterministic output path for one clip variant.
func (l Layout) ClipPath(id int, title string, vertical bool) string {
	return filepath.Join(l.ClipsDir(), ClipFileName(id, title, vertical))
}

// ClipFileName returns clip_<id:02>_<title_slug>[_vertical].mp4.
func ClipFileName(id int, title string, vertical bool) string {
	titleSlug := Slugify(title, TitleSlugLength)
	if titleSlug == "" {
		titleSlug = fmt.Sprintf("clip_%02d", id)
	}
	name := fmt.Sprintf("clip_%02d_%s", id, titleSlug)
	if vertical {
		name += "_vertical"
	}
	return name + ".mp4"
}

func baseName(videoName string) string {
	base := filepath.Base(videoName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
