package config

// Job names shared by the scheduler, the coordinator, and the control surface.
const (
	JobViralFinder          = "viral_finder"
	JobCollector            = "collector"
	JobTranscribe           = "transcribe"
	JobDescriptionGenerator = "description_generator"
	JobEditor               = "editor"
	JobCaptioner            = "captioner"
	JobPublisher            = "publisher"
	JobCleaner              = "cleaner"
)

const (
	defaultDataDir                 = "~/.local/share/shortsfactory"
	defaultAPIBind                 = "0.0.0.0:3000"
	defaultCronIntervalMinutes     = 60
	defaultInitialRunDelaySeconds  = 10
	defaultBatchSize               = 1
	defaultMaxAttempts             = 3
	defaultTransformTimeoutSeconds = 1800
	defaultJobTimeoutSeconds       = 0
	defaultClaimTimeoutSeconds     = 7200
	defaultTimezone                = "UTC"
	defaultJitterSeconds           = 10
	defaultMetricoolBaseURL        = "https://app.metricool.com/api"
	defaultUploadURL               = "https://tmpfiles.org/api/v1/upload"
	defaultMaxDaily                = 4
	defaultSpacingMinutes          = 180
	defaultBaseOffsetMinutes       = 10
	defaultCaption                 = "Check this out! 🔥 #viral #shorts #trending"
	defaultPublishTimeoutSeconds   = 120
	defaultRedditBaseURL           = "https://www.reddit.com"
	defaultRedditUserAgent         = "Mozilla/5.0 (compatible; VideoBot/1.0)"
	defaultMinUpvotes              = 1000
	defaultMaxDurationSeconds      = 60
	defaultMaxDownloadsPerRun      = 1
	defaultDownloadTimeoutSeconds  = 120
	defaultMinFileBytes            = 10000
	defaultYtDlpBinary             = "yt-dlp"
	defaultLLMBaseURL              = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel                = "gpt-4o-mini"
	defaultLLMMaxTokens            = 200
	defaultLLMTemperature          = 0.8
	defaultLLMTimeoutSeconds       = 30
	defaultLLMBatchSize            = 3
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultPythonBinary            = "python3"
	defaultWhisperModel            = "base"
	defaultCaptionGroupSize        = 2
	defaultMinAudioBytes           = 1000
	defaultMinFreeDiskMiB          = 1024
	defaultLanguage                = "en"
	defaultOutMaxAgeHours          = 24
	defaultTempMaxAgeHours         = 12
	defaultPublishedGraceHours     = 0
	defaultOrphanMaxAgeMinutes     = 60
	defaultNotifyRequestTimeout    = 10
	defaultSMTPHost                = "smtp.gmail.com"
	defaultSMTPPort                = 587
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 50
	defaultLogMaxBackups           = 5
	defaultLogMaxAgeDays           = 30
)

// JobOrder is the full production cycle: ingest, enrich, edit, caption, publish, retain.
var JobOrder = []string{
	JobViralFinder,
	JobCollector,
	JobTranscribe,
	JobDescriptionGenerator,
	JobEditor,
	JobCaptioner,
	JobPublisher,
	JobCleaner,
}

func defaultIntervals() map[string]int {
	return map[string]int{
		JobViralFinder:          360,
		JobCollector:            60,
		JobTranscribe:           60,
		JobDescriptionGenerator: 60,
		JobEditor:               60,
		JobCaptioner:            120,
		JobPublisher:            360,
		JobCleaner:              1440,
	}
}

func defaultSubreddits() []string {
	return []string{
		"oddlysatisfying",
		"nextfuckinglevel",
		"BeAmazed",
		"Damnthatsinteresting",
		"interestingasfuck",
		"toptalent",
		"woahdude",
		"blackmagicfuckery",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Workflow: Workflow{
			CronIntervalMinutes:     defaultCronIntervalMinutes,
			InitialRunDelaySeconds:  defaultInitialRunDelaySeconds,
			BatchSize:               defaultBatchSize,
			MaxAttempts:             defaultMaxAttempts,
			TransformTimeoutSeconds: defaultTransformTimeoutSeconds,
			JobTimeoutSeconds:       defaultJobTimeoutSeconds,
			ClaimTimeoutSeconds:     defaultClaimTimeoutSeconds,
			Timezone:                defaultTimezone,
		},
		Scheduler: Scheduler{
			Enabled:       false,
			JitterSeconds: defaultJitterSeconds,
			Intervals:     defaultIntervals(),
		},
		Publish: Publish{
			MetricoolBaseURL:      defaultMetricoolBaseURL,
			Platforms:             []string{"TIKTOK", "INSTAGRAM"},
			UploadURL:             defaultUploadURL,
			MaxDaily:              defaultMaxDaily,
			SpacingMinutes:        defaultSpacingMinutes,
			BaseOffsetMinutes:     defaultBaseOffsetMinutes,
			DefaultCaption:        defaultCaption,
			RequestTimeoutSeconds: defaultPublishTimeoutSeconds,
		},
		Discover: Discover{
			Enabled:                true,
			BaseURL:                defaultRedditBaseURL,
			UserAgent:              defaultRedditUserAgent,
			Subreddits:             defaultSubreddits(),
			MinUpvotes:             defaultMinUpvotes,
			MaxDurationSeconds:     defaultMaxDurationSeconds,
			MaxDownloadsPerRun:     defaultMaxDownloadsPerRun,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			MinFileBytes:           defaultMinFileBytes,
			YtDlpBinary:            defaultYtDlpBinary,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			BatchSize:      defaultLLMBatchSize,
		},
		Media: Media{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			PythonBinary:     defaultPythonBinary,
			WhisperModel:     defaultWhisperModel,
			CaptionGroupSize: defaultCaptionGroupSize,
			MinAudioBytes:    defaultMinAudioBytes,
			MinFreeDiskMiB:   defaultMinFreeDiskMiB,
			DefaultLanguage:  defaultLanguage,
		},
		Retention: Retention{
			OutMaxAgeHours:      defaultOutMaxAgeHours,
			TempMaxAgeHours:     defaultTempMaxAgeHours,
			PublishedGraceHours: defaultPublishedGraceHours,
			OrphanMaxAgeMinutes: defaultOrphanMaxAgeMinutes,
		},
		Notifications: Notifications{
			SMTPHost:       defaultSMTPHost,
			SMTPPort:       defaultSMTPPort,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
