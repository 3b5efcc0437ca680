package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(context.Background(), path, "my_video")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadEmptyStoreReturnsFreshState(t *testing.T) {
	store := openTestStore(t)
	st, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Slug != "my_video" {
		t.Fatalf("unexpected slug %q", st.Slug)
	}
	if st.Stage != StageNone {
		t.Fatalf("expected no stage, got %q", st.Stage)
	}
	if len(st.Artifacts) != 0 || len(st.CutProgress) != 0 || len(st.Uploads) != 0 {
		t.Fatalf("expected empty maps, got %+v", st)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, func(st *PipelineState) error {
		st.VideoName = "My Video.mp4"
		st.Source = SourceRef{Kind: SourceDrive, Locator: "My Video.mp4", FileID: "file-1", ParentID: "parent-1"}
		st.SourceDuration = 3723.5
		st.RunID = "run-1"
		st.Advance(StageClipsIdentified)
		st.SetArtifact(Artifact{Name: ArtifactVideo, Path: "/work/my_video/My Video.mp4", Size: 1024, SHA256: "abc"})
		st.SetCutRecord(CutRecord{
			Key:      JobKey{ClipID: 2, Variant: VariantVertical},
			Done:     true,
			Attempts: 2,
			Output:   Artifact{Path: "/work/my_video/clips/clip_02_x_vertical.mp4", Size: 10, SHA256: "def"},
		})
		st.SetCutRecord(CutRecord{
			Key:       JobKey{ClipID: 1, Variant: VariantHorizontal},
			Attempts:  3,
			LastError: "ffmpeg exited 1",
		})
		st.SetUpload(UploadRecord{Name: "clip_02_x_vertical.mp4", Link: "https://example.test/x", SHA256: "def", Done: true})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	st, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.VideoName != "My Video.mp4" || st.Source.Kind != SourceDrive || st.Source.FileID != "file-1" {
		t.Fatalf("source not persisted: %+v", st.Source)
	}
	if st.SourceDuration != 3723.5 {
		t.Fatalf("duration not persisted: %v", st.SourceDuration)
	}
	if st.Stage != StageClipsIdentified {
		t.Fatalf("stage not persisted: %q", st.Stage)
	}
	if a, ok := st.Artifact(ArtifactVideo); !ok || a.Size != 1024 || a.SHA256 != "abc" {
		t.Fatalf("artifact not persisted: %+v", a)
	}
	records := st.SortedCutRecords()
	if len(records) != 2 {
		t.Fatalf("expected 2 cut records, got %d", len(records))
	}
	if records[0].Key.ClipID != 1 || records[0].Done || records[0].LastError != "ffmpeg exited 1" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if !records[1].Done || records[1].Output.SHA256 != "def" || records[1].Attempts != 2 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
	if rec, ok := st.Uploads["clip_02_x_vertical.mp4"]; !ok || !rec.Done || rec.Link == "" || rec.SHA256 != "def" {
		t.Fatalf("upload not persisted: %+v", rec)
	}
	if st.CreatedAt.IsZero() || st.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestUpdateErrorLeavesStateUntouched(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if _, err := store.Update(ctx, func(st *PipelineState) error {
		st.Advance(StageDownloaded)
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.Update(ctx, func(st *PipelineState) error {
		st.Advance(StageUploaded)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	st, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Stage != StageDownloaded {
		t.Fatalf("expected stage to stay downloaded, got %q", st.Stage)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	st := New("x")
	st.Advance(StageCut)
	st.Advance(StageTranscribed)
	if st.Stage != StageCut {
		t.Fatalf("expected stage to remain cut, got %q", st.Stage)
	}
	st.Advance(StageUploaded)
	if st.Stage != StageUploaded {
		t.Fatalf("expected uploaded, got %q", st.Stage)
	}
}

func TestAdvanceStepRefusesToSkip(t *testing.T) {
	st := New("x")
	if !st.AdvanceStep(StageDownloaded) || st.Stage != StageDownloaded {
		t.Fatalf("expected downloaded, got %q", st.Stage)
	}
	if st.AdvanceStep(StageCut) {
		t.Fatal("expected a skip from downloaded to cut to be refused")
	}
	if st.Stage != StageDownloaded {
		t.Fatalf("refused step changed stage to %q", st.Stage)
	}
	if !st.AdvanceStep(StageNone) || st.Stage != StageDownloaded {
		t.Fatalf("earlier stage must be a no-op, got %q", st.Stage)
	}
}

func TestRecordArtifactKeepsUnchangedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk_clips.json")
	if err := os.WriteFile(path, []byte(`{"clips":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := Fingerprint(ArtifactManifest, path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	st := New("x")
	if !st.RecordArtifact(first) {
		t.Fatal("expected first record to be stored")
	}

	again := first
	again.RecordedAt = first.RecordedAt.Add(time.Hour)
	if st.RecordArtifact(again) {
		t.Fatal("identical file must keep its record")
	}
	if got, _ := st.Artifact(ArtifactManifest); !got.RecordedAt.Equal(first.RecordedAt) {
		t.Fatalf("recorded_at moved to %v", got.RecordedAt)
	}

	if err := os.WriteFile(path, []byte(`{"clips":[{}]}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	changed, err := Fingerprint(ArtifactManifest, path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if !st.RecordArtifact(changed) {
		t.Fatal("edited file must replace the record")
	}
	if got, _ := st.Artifact(ArtifactManifest); got.SHA256 != changed.SHA256 {
		t.Fatalf("record not replaced: %+v", got)
	}
}

func TestConcurrentUpdatesKeepEveryJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const jobs = 20
	var wg sync.WaitGroup
	errs := make(chan error, jobs)
	for i := 1; i <= jobs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := store.Update(ctx, func(st *PipelineState) error {
				st.SetCutRecord(CutRecord{Key: JobKey{ClipID: id, Variant: VariantHorizontal}, Done: true, Attempts: 1})
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	st, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.CutProgress) != jobs {
		t.Fatalf("expected %d cut records, got %d", jobs, len(st.CutProgress))
	}
}

func TestSaveReplacesState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	st := New("ignored")
	st.Advance(StageTranscribed)
	st.SetArtifact(Artifact{Name: ArtifactAudio, Path: "/a.mp3", Size: 5})
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Slug != "my_video" {
		t.Fatalf("expected store slug to win, got %q", loaded.Slug)
	}
	if loaded.Stage != StageTranscribed {
		t.Fatalf("unexpected stage %q", loaded.Stage)
	}
	if _, ok := loaded.Artifact(ArtifactAudio); !ok {
		t.Fatal("expected audio artifact")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(context.Background(), path, "x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion+1)); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	_, err = Open(context.Background(), path, "x")
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	store, err := Open(ctx, path, "x")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Update(ctx, func(st *PipelineState) error {
		st.Advance(StageCut)
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(ctx, path, "x")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	st, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Stage != StageCut {
		t.Fatalf("expected cut after reopen, got %q", st.Stage)
	}
}

func TestFingerprintAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a, err := Fingerprint("clip", path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a.Size != 5 || a.SHA256 == "" {
		t.Fatalf("unexpected fingerprint %+v", a)
	}
	if err := a.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := os.WriteFile(path, []byte("HELLO"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := a.Verify(); !errors.Is(err, ErrArtifactChanged) {
		t.Fatalf("expected changed checksum, got %v", err)
	}

	if err := os.WriteFile(path, []byte("longer"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := a.Verify(); !errors.Is(err, ErrArtifactChanged) {
		t.Fatalf("expected changed size, got %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := a.Verify(); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected missing, got %v", err)
	}
	if a.Valid() {
		t.Fatal("expected invalid artifact")
	}
}

func TestParseStageRejectsUnknown(t *testing.T) {
	if _, err := ParseStage("rendered"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
	for _, stage := range stageOrder {
		got, err := ParseStage(string(stage))
		if err != nil || got != stage {
			t.Fatalf("ParseStage(%q) = %q, %v", stage, got, err)
		}
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{fmt.Errorf("wrap: %w", errors.New("SQLITE_BUSY")), true},
		{sql.ErrNoRows, false},
	}
	for _, tc := range cases {
		if got := isSQLiteBusy(tc.err); got != tc.want {
			t.Fatalf("isSQLiteBusy(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
