package workflow

import (
	"log/slog"

	"clipper/internal/config"
	"clipper/internal/cutting"
	"clipper/internal/ingest"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/services"
	"clipper/internal/services/assemblyai"
	"clipper/internal/services/drive"
	"clipper/internal/services/objectstore"
	"clipper/internal/transcription"
	"clipper/internal/upload"
)

// Services are the long-lived clients stage handlers share. Nil fields fall
// back to the binaries and providers named in the config.
type Services struct {
	Transcriber transcription.Transcriber
	Drive       *drive.Service
	Objects     *objectstore.Client
	// Runner replaces the ffmpeg process runner.
	Runner ffmpeg.Runner
	// Probe replaces ffprobe for source durations.
	Probe ingest.Prober
	// Uploader replaces the provider selected by upload.provider.
	Uploader upload.Uploader
}

// DefaultStages wires the production handlers for every run.
func DefaultStages(cfg *config.Config, svc Services, logger *slog.Logger) StageFactory {
	return func(deps RunDeps) (Stages, error) {
		probe := svc.Probe
		if probe == nil {
			probe = ingest.FFprobe(cfg.FFprobeBinary())
		}
		tool := ffmpeg.New(cfg.FFmpegBinary(),
			ffmpeg.WithPreSeek(cfg.Cutting.PreSeekSeconds),
			ffmpeg.WithRunner(svc.Runner),
		)

		transcriber := svc.Transcriber
		if transcriber == nil {
			transcriber = NewTranscriber(cfg)
		}
		transcribeOpts := transcription.Options{AudioBitrate: cfg.Transcription.AudioBitrate}
		if cfg.Upload.UploadTranscripts && svc.Drive != nil {
			transcribeOpts.Uploader = svc.Drive
		}

		scheduler := cutting.NewScheduler(tool, deps.Store, deps.Sink, logger, cutting.Options{
			Workers:       cfg.Cutting.Workers,
			MaxAttempts:   cfg.Cutting.MaxAttempts,
			RetryDelay:    cfg.RetryDelay(),
			JobTimeout:    cfg.JobTimeout(),
			HorizontalCRF: cfg.Cutting.HorizontalCRF,
			VerticalCRF:   cfg.Cutting.VerticalCRF,
			Width:         cfg.Cutting.VerticalWidth,
			Height:        cfg.Cutting.VerticalHeight,
		})

		stages := Stages{
			Ingest:     ingest.NewHandler(deps.Source, probe, cfg.FFprobeBinary(), logger),
			Transcribe: transcription.NewHandler(tool, transcriber, deps.Sink, transcribeOpts, logger),
			Cut:        cutting.NewHandler(scheduler, deps.Store, deps.Sink, cfg.Cutting.Vertical, cfg.FFmpegBinary(), logger),
		}

		uploader, err := uploaderFor(cfg, svc)
		if err != nil {
			return Stages{}, err
		}
		if uploader != nil {
			stages.Upload = upload.NewHandler(uploader, deps.Store, deps.Sink, logger)
		}
		return stages, nil
	}
}

// NewTranscriber builds the AssemblyAI client from the transcription config.
func NewTranscriber(cfg *config.Config) *assemblyai.Client {
	return assemblyai.NewClient(assemblyai.Config{
		APIKey:        cfg.Transcription.APIKey,
		BaseURL:       cfg.Transcription.BaseURL,
		SpeechModel:   cfg.Transcription.SpeechModel,
		SpeakerLabels: cfg.Transcription.SpeakerLabels,
		PollInterval:  cfg.PollInterval(),
		Timeout:       cfg.TranscriptionTimeout(),
	})
}

func uploaderFor(cfg *config.Config, svc Services) (upload.Uploader, error) {
	if svc.Uploader != nil {
		return svc.Uploader, nil
	}
	switch cfg.Upload.Provider {
	case "":
		return nil, nil
	case "drive":
		if svc.Drive == nil {
			return nil, services.Wrap(services.ErrConfiguration, "upload", "select uploader", "drive client not configured", nil)
		}
		return &upload.Drive{API: svc.Drive, MakePublic: cfg.Upload.MakePublic}, nil
	case "s3":
		if svc.Objects == nil {
			return nil, services.Wrap(services.ErrConfiguration, "upload", "select uploader", "object store client not configured", nil)
		}
		return &upload.S3{Store: svc.Objects}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "upload", "select uploader", "unknown provider "+cfg.Upload.Provider, nil)
	}
}
