package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func readState(ctx context.Context, tx *sql.Tx, slug string) (*PipelineState, error) {
	st := New(slug)

	var (
		kind, stage, created, updated string
	)
	row := tx.QueryRowContext(ctx, `SELECT video_name, source_kind, source_locator, source_file_id,
		source_parent_id, stage, source_duration, folder_id, folder_link, run_id, created_at, updated_at
		FROM pipeline WHERE slug = ?`, slug)
	err := row.Scan(&st.VideoName, &kind, &st.Source.Locator, &st.Source.FileID,
		&st.Source.ParentID, &stage, &st.SourceDuration, &st.FolderID, &st.FolderLink, &st.RunID,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pipeline row: %w", err)
	}
	st.Source.Kind = SourceKind(kind)
	if st.Stage, err = ParseStage(stage); err != nil {
		return nil, fmt.Errorf("read pipeline row: %w", err)
	}
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = parseTime(updated)

	if err := readArtifacts(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := readCutProgress(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := readUploads(ctx, tx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func readArtifacts(ctx context.Context, tx *sql.Tx, st *PipelineState) error {
	rows, err := tx.QueryContext(ctx, `SELECT name, path, size_bytes, sha256, recorded_at FROM artifacts`)
	if err != nil {
		return fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Artifact
		var recorded string
		if err := rows.Scan(&a.Name, &a.Path, &a.Size, &a.SHA256, &recorded); err != nil {
			return fmt.Errorf("scan artifact: %w", err)
		}
		a.RecordedAt = parseTime(recorded)
		st.Artifacts[a.Name] = a
	}
	return rows.Err()
}

func readCutProgress(ctx context.Context, tx *sql.Tx, st *PipelineState) error {
	rows, err := tx.QueryContext(ctx, `SELECT clip_id, variant, done, attempts, last_error,
		output_path, output_size, output_sha256, updated_at FROM cut_progress`)
	if err != nil {
		return fmt.Errorf("query cut progress: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec CutRecord
		var variant, updated string
		var done int
		if err := rows.Scan(&rec.Key.ClipID, &variant, &done, &rec.Attempts, &rec.LastError,
			&rec.Output.Path, &rec.Output.Size, &rec.Output.SHA256, &updated); err != nil {
			return fmt.Errorf("scan cut progress: %w", err)
		}
		rec.Key.Variant = Variant(variant)
		rec.Done = done != 0
		rec.UpdatedAt = parseTime(updated)
		rec.Output.Name = clipArtifactName(rec.Key)
		rec.Output.RecordedAt = rec.UpdatedAt
		st.CutProgress[rec.Key] = rec
	}
	return rows.Err()
}

func readUploads(ctx context.Context, tx *sql.Tx, st *PipelineState) error {
	rows, err := tx.QueryContext(ctx, `SELECT name, path, link, remote_id, sha256, done, last_error, updated_at FROM uploads`)
	if err != nil {
		return fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec UploadRecord
		var done int
		var updated string
		if err := rows.Scan(&rec.Name, &rec.Path, &rec.Link, &rec.RemoteID, &rec.SHA256, &done, &rec.LastError, &updated); err != nil {
			return fmt.Errorf("scan upload: %w", err)
		}
		rec.Done = done != 0
		rec.UpdatedAt = parseTime(updated)
		st.Uploads[rec.Name] = rec
	}
	return rows.Err()
}

func writeState(ctx context.Context, tx *sql.Tx, st *PipelineState) error {
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `INSERT INTO pipeline (slug, video_name, source_kind, source_locator,
		source_file_id, source_parent_id, stage, source_duration, folder_id, folder_link, run_id,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET video_name = excluded.video_name,
		source_kind = excluded.source_kind, source_locator = excluded.source_locator,
		source_file_id = excluded.source_file_id, source_parent_id = excluded.source_parent_id,
		stage = excluded.stage, source_duration = excluded.source_duration,
		folder_id = excluded.folder_id, folder_link = excluded.folder_link,
		run_id = excluded.run_id, updated_at = excluded.updated_at`,
		st.Slug, st.VideoName, string(st.Source.Kind), st.Source.Locator, st.Source.FileID,
		st.Source.ParentID, string(st.Stage), st.SourceDuration, st.FolderID, st.FolderLink,
		st.RunID, formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("write pipeline row: %w", err)
	}

	for _, table := range []string{"artifacts", "cut_progress", "uploads"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, a := range st.Artifacts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO artifacts (name, path, size_bytes, sha256, recorded_at)
			VALUES (?, ?, ?, ?, ?)`, a.Name, a.Path, a.Size, a.SHA256, formatTime(a.RecordedAt)); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Name, err)
		}
	}
	for _, rec := range st.CutProgress {
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO cut_progress (clip_id, variant, done, attempts,
			last_error, output_path, output_size, output_sha256, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Key.ClipID, string(rec.Key.Variant), boolInt(rec.Done), rec.Attempts, rec.LastError,
			rec.Output.Path, rec.Output.Size, rec.Output.SHA256, formatTime(rec.UpdatedAt)); err != nil {
			return fmt.Errorf("write cut progress %s: %w", rec.Key, err)
		}
	}
	for _, rec := range st.Uploads {
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO uploads (name, path, link, remote_id, sha256, done, last_error, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, rec.Name, rec.Path, rec.Link, rec.RemoteID, rec.SHA256, boolInt(rec.Done),
			rec.LastError, formatTime(rec.UpdatedAt)); err != nil {
			return fmt.Errorf("write upload %s: %w", rec.Name, err)
		}
	}
	return nil
}

func clipArtifactName(key JobKey) string {
	return fmt.Sprintf("clip_%02d_%s", key.ClipID, key.Variant)
}

// ClipArtifactName is the logical artifact name for one cut output.
func ClipArtifactName(key JobKey) string { return clipArtifactName(key) }

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
