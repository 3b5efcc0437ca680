package state

import (
	"errors"
	"fmt"
	"os"
	"time"

	"clipper/internal/fileutil"
)

// ChecksumLimit is the largest artifact that gets a SHA-256 fingerprint;
// larger files are verified by size only.
const ChecksumLimit int64 = 256 << 20

var (
	// ErrArtifactMissing reports that a recorded artifact is no longer on disk.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrArtifactChanged reports a size or checksum mismatch.
	ErrArtifactChanged = errors.New("artifact changed")
)

// Fingerprint stats (and, below ChecksumLimit, hashes) path.
func Fingerprint(name, path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("fingerprint %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("fingerprint %s: %s is not a regular file", name, path)
	}
	artifact := Artifact{
		Name:       name,
		Path:       path,
		Size:       info.Size(),
		RecordedAt: time.Now().UTC(),
	}
	if info.Size() <= ChecksumLimit {
		sum, size, err := fileutil.SHA256File(path)
		if err != nil {
			return Artifact{}, fmt.Errorf("fingerprint %s: %w", name, err)
		}
		artifact.SHA256 = sum
		artifact.Size = size
	}
	return artifact, nil
}

// Verify checks that the artifact on disk still matches its fingerprint.
func (a Artifact) Verify() error {
	if a.Path == "" {
		return fmt.Errorf("%w: %s has no recorded path", ErrArtifactMissing, a.Name)
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s (%s)", ErrArtifactMissing, a.Name, a.Path)
		}
		return fmt.Errorf("verify %s: %w", a.Name, err)
	}
	if info.Size() != a.Size {
		return fmt.Errorf("%w: %s size %d, recorded %d", ErrArtifactChanged, a.Name, info.Size(), a.Size)
	}
	if a.SHA256 == "" {
		return nil
	}
	sum, _, err := fileutil.SHA256File(a.Path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", a.Name, err)
	}
	if sum != a.SHA256 {
		return fmt.Errorf("%w: %s checksum mismatch", ErrArtifactChanged, a.Name)
	}
	return nil
}

// Valid reports whether Verify succeeds.
func (a Artifact) Valid() bool {
	return a.Verify() == nil
}
