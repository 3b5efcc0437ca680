package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"clipper/internal/fileutil"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/services/assemblyai"
	"clipper/internal/services/drive"
	"clipper/internal/stage"
	"clipper/internal/state"
)

// AudioExtractor pulls the audio track out of the source video.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, output, bitrate string) error
}

// Transcriber turns an audio file into a speaker-labelled transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (assemblyai.Transcript, error)
	HealthCheck(ctx context.Context) error
}

// DocumentUploader copies transcript files next to a Drive-hosted source.
type DocumentUploader interface {
	Upload(ctx context.Context, localPath, parentID string) (drive.File, error)
}

// Options tunes the transcription stage.
type Options struct {
	AudioBitrate string
	// Uploader, when set, receives the SRT and Markdown transcript for
	// sources that came from Drive.
	Uploader DocumentUploader
}

// Handler runs audio extraction and transcription and writes the transcript
// renderings into the work directory.
type Handler struct {
	extractor   AudioExtractor
	transcriber Transcriber
	sink        *notifications.Sink
	opts        Options
	logger      *slog.Logger
}

// NewHandler builds the transcription stage.
func NewHandler(extractor AudioExtractor, transcriber Transcriber, sink *notifications.Sink, opts Options, logger *slog.Logger) *Handler {
	if strings.TrimSpace(opts.AudioBitrate) == "" {
		opts.AudioBitrate = "128k"
	}
	h := &Handler{extractor: extractor, transcriber: transcriber, sink: sink, opts: opts}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "transcriber")
}

// Name implements stage.Handler.
func (h *Handler) Name() stage.Name { return stage.Transcribe }

// Satisfied reports whether all three transcript artifacts still verify.
func (h *Handler) Satisfied(_ context.Context, in stage.Input) bool {
	if in.State == nil {
		return false
	}
	for _, name := range []string{state.ArtifactSubtitles, state.ArtifactTranscript, state.ArtifactTranscriptData} {
		a, ok := in.State.Artifact(name)
		if !ok || !a.Valid() {
			return false
		}
	}
	return true
}

// Execute implements stage.Handler.
func (h *Handler) Execute(ctx context.Context, in stage.Input) (stage.Output, error) {
	st := in.State
	logger := logging.WithContext(ctx, h.logger)
	video, ok := st.Artifact(state.ArtifactVideo)
	if !ok {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Transcribe), "locate source", "source video not recorded", nil)
	}
	if err := video.Verify(); err != nil {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Transcribe), "verify source", "", err)
	}

	transcript, reused, err := h.transcript(ctx, in, video.Path)
	if err != nil {
		return stage.Output{}, err
	}

	base := strings.TrimSuffix(filepath.Base(st.VideoName), filepath.Ext(st.VideoName))
	srtPath := in.Layout.SubtitlePath(st.VideoName)
	mdPath := in.Layout.TranscriptPath(st.VideoName)
	if err := fileutil.WriteFileAtomic(srtPath, []byte(RenderSRT(transcript)), 0o644); err != nil {
		return stage.Output{}, services.Wrap(services.ErrTranscription, string(stage.Transcribe), "write srt", "", err)
	}
	if err := fileutil.WriteFileAtomic(mdPath, []byte(RenderMarkdown(transcript, base)), 0o644); err != nil {
		return stage.Output{}, services.Wrap(services.ErrTranscription, string(stage.Transcribe), "write transcript", "", err)
	}
	for name, path := range map[string]string{
		state.ArtifactSubtitles:      srtPath,
		state.ArtifactTranscript:     mdPath,
		state.ArtifactTranscriptData: in.Layout.TranscriptDataPath(st.VideoName),
	} {
		artifact, err := state.Fingerprint(name, path)
		if err != nil {
			return stage.Output{}, services.Wrap(services.ErrTranscription, string(stage.Transcribe), "fingerprint "+name, "", err)
		}
		st.SetArtifact(artifact)
	}

	speakers := transcript.Speakers()
	logger.Info("transcript written",
		logging.EventType("transcription_completed"),
		logging.Bool("reused_provider_result", reused),
		logging.Int("words", len(transcript.Words)),
		logging.Int("utterances", len(transcript.Utterances)),
		logging.Int("speakers", len(speakers)),
		logging.String("srt", srtPath),
	)

	h.uploadDocuments(ctx, st, srtPath, mdPath)

	h.sink.Send(notifications.EventTranscriptionCompleted, notifications.Payload{
		notifications.KeyVideoName:  st.VideoName,
		notifications.KeyDuration:   transcript.DurationSeconds(),
		notifications.KeyWordCount:  len(transcript.Words),
		notifications.KeyUtterances: len(transcript.Utterances),
		notifications.KeySpeakers:   len(speakers),
		notifications.KeyDocuments:  []string{srtPath, mdPath},
	})

	return stage.Output{
		State:   st,
		Advance: state.StageTranscribed,
		Summary: fmt.Sprintf("%d words, %d utterances", len(transcript.Words), len(transcript.Utterances)),
	}, nil
}

// transcript returns the provider result. A completed data file from an
// earlier run is reused instead of resubmitting the audio.
func (h *Handler) transcript(ctx context.Context, in stage.Input, videoPath string) (assemblyai.Transcript, bool, error) {
	st := in.State
	dataPath := in.Layout.TranscriptDataPath(st.VideoName)
	if fileutil.Exists(dataPath) {
		if t, err := readTranscript(dataPath); err == nil && t.Status == assemblyai.StatusCompleted {
			return t, true, nil
		}
	}
	if h.transcriber == nil {
		return assemblyai.Transcript{}, false, services.Wrap(services.ErrConfiguration, string(stage.Transcribe), "transcribe", "transcription provider not configured", nil)
	}

	audioPath, err := h.audio(ctx, in, videoPath)
	if err != nil {
		return assemblyai.Transcript{}, false, err
	}

	logging.WithContext(ctx, h.logger).Info("submitting audio for transcription",
		logging.EventType("transcription_submit"),
		logging.String("audio", audioPath),
	)
	t, err := h.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return assemblyai.Transcript{}, false, services.Wrap(services.ErrTranscription, string(stage.Transcribe), "transcribe", "", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return assemblyai.Transcript{}, false, fmt.Errorf("encode transcript: %w", err)
	}
	if err := fileutil.WriteFileAtomic(dataPath, data, 0o644); err != nil {
		return assemblyai.Transcript{}, false, services.Wrap(services.ErrTranscription, string(stage.Transcribe), "write transcript data", "", err)
	}
	return t, false, nil
}

func (h *Handler) audio(ctx context.Context, in stage.Input, videoPath string) (string, error) {
	st := in.State
	audioPath := in.Layout.AudioPath(st.VideoName)
	if fileutil.Exists(audioPath) {
		artifact, err := state.Fingerprint(state.ArtifactAudio, audioPath)
		if err == nil && artifact.Size > 0 {
			st.SetArtifact(artifact)
			return audioPath, nil
		}
	}
	if h.extractor == nil {
		return "", services.Wrap(services.ErrConfiguration, string(stage.Transcribe), "extract audio", "audio extractor not configured", nil)
	}
	if err := h.extractor.ExtractAudio(ctx, videoPath, audioPath, h.opts.AudioBitrate); err != nil {
		return "", services.Wrap(services.ErrExternalTool, string(stage.Transcribe), "extract audio", "audio extraction failed", err)
	}
	artifact, err := state.Fingerprint(state.ArtifactAudio, audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, string(stage.Transcribe), "extract audio", "", err)
	}
	st.SetArtifact(artifact)
	logging.WithContext(ctx, h.logger).Info("audio extracted",
		logging.String("audio", audioPath),
		logging.Int64("size_bytes", artifact.Size),
	)
	return audioPath, nil
}

// uploadDocuments is best effort; a failure is logged and never fails the
// stage.
func (h *Handler) uploadDocuments(ctx context.Context, st *state.PipelineState, paths ...string) {
	if h.opts.Uploader == nil || st.Source.Kind != state.SourceDrive || st.Source.ParentID == "" {
		return
	}
	logger := logging.WithContext(ctx, h.logger)
	for _, path := range paths {
		if _, err := h.opts.Uploader.Upload(ctx, path, st.Source.ParentID); err != nil {
			logging.WarnWithContext(logger, "transcript upload failed", "transcript_upload_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcript stays local only"),
			)
			continue
		}
		logger.Info("transcript uploaded", logging.String("path", path))
	}
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.transcriber == nil {
		return stage.NotReady(stage.Transcribe, "transcription provider not configured")
	}
	if err := h.transcriber.HealthCheck(ctx); err != nil {
		return stage.NotReady(stage.Transcribe, err.Error())
	}
	return stage.Ready(stage.Transcribe)
}

func readTranscript(path string) (assemblyai.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return assemblyai.Transcript{}, err
	}
	var t assemblyai.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return assemblyai.Transcript{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return t, nil
}
