package config

const (
	defaultConfigPath              = "~/.config/clipper/config.toml"
	defaultWorkRoot                = "~/.local/share/clipper/work"
	defaultLogDir                  = "~/.local/share/clipper/logs"
	defaultDriveClientSecretPath   = "~/.config/clipper/client_secret.json"
	defaultDriveTokenPath          = "~/.config/clipper/drive_token.json"
	defaultAssemblyAIBaseURL       = "https://api.assemblyai.com"
	defaultSpeechModel             = "universal"
	defaultAudioBitrate            = "128k"
	defaultPollIntervalSeconds     = 5
	defaultTranscriptionTimeout    = 3600
	defaultWorkers                 = 4
	defaultMaxAttempts             = 3
	defaultRetryDelaySeconds       = 2
	defaultJobTimeoutSeconds       = 1800
	defaultMaxClipSeconds          = 600
	defaultPreSeekSeconds          = 2
	defaultHorizontalCRF           = 18
	defaultVerticalCRF             = 23
	defaultVerticalWidth           = 1080
	defaultVerticalHeight          = 1920
	defaultS3LinkExpiryHours       = 168
	defaultNotifyRequestTimeout    = 15
	defaultNotifyQueueSize         = 64
	defaultNotifyDrainTimeout      = 30
	defaultTelegramAPIBase         = "https://api.telegram.org"
	defaultTelegramMaxUploadMB     = 50
	defaultTelegramTimeout         = 300
	defaultTelegramPreviewHeight   = 720
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultUploadProvider          = "drive"
	maxS3LinkExpiryHours           = 168
	defaultTelegramMaxUploadHardMB = 2000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkRoot: defaultWorkRoot,
			LogDir:   defaultLogDir,
		},
		Drive: Drive{
			ClientSecretPath: defaultDriveClientSecretPath,
			TokenPath:        defaultDriveTokenPath,
		},
		Transcription: Transcription{
			BaseURL:             defaultAssemblyAIBaseURL,
			SpeechModel:         defaultSpeechModel,
			SpeakerLabels:       true,
			AudioBitrate:        defaultAudioBitrate,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			TimeoutSeconds:      defaultTranscriptionTimeout,
		},
		Cutting: Cutting{
			Workers:           defaultWorkers,
			Vertical:          true,
			MaxAttempts:       defaultMaxAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			JobTimeoutSeconds: defaultJobTimeoutSeconds,
			MaxClipSeconds:    defaultMaxClipSeconds,
			PreSeekSeconds:    defaultPreSeekSeconds,
			HorizontalCRF:     defaultHorizontalCRF,
			VerticalCRF:       defaultVerticalCRF,
			VerticalWidth:     defaultVerticalWidth,
			VerticalHeight:    defaultVerticalHeight,
		},
		Upload: Upload{
			Provider:          defaultUploadProvider,
			MakePublic:        true,
			UploadTranscripts: true,
		},
		S3: S3{
			UseSSL:          true,
			LinkExpiryHours: defaultS3LinkExpiryHours,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyRequestTimeout,
			QueueSize:           defaultNotifyQueueSize,
			DrainTimeout:        defaultNotifyDrainTimeout,
			TelegramAPIBase:     defaultTelegramAPIBase,
			TelegramMaxUploadMB: defaultTelegramMaxUploadMB,
			TelegramTimeout:     defaultTelegramTimeout,
			PreviewHeight:       defaultTelegramPreviewHeight,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
