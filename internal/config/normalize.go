package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyDeploymentEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeScheduler()
	c.normalizePublish()
	c.normalizeDiscover()
	c.normalizeLLM()
	c.normalizeMedia()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// applyDeploymentEnv lets container deployments override the data root, the
// listen port, and the cycle interval without editing the config file.
func (c *Config) applyDeploymentEnv() {
	if value, ok := lookupTrimmed("DATA_PATH"); ok {
		c.Paths.DataDir = value
	}
	if value, ok := lookupTrimmed("PORT"); ok {
		host := "0.0.0.0"
		if h, _, err := net.SplitHostPort(c.API.Bind); err == nil && h != "" {
			host = h
		}
		c.API.Bind = net.JoinHostPort(host, value)
	}
	if value, ok := lookupTrimmed("CRON_INTERVAL"); ok {
		if minutes, err := strconv.Atoi(value); err == nil {
			c.Workflow.CronIntervalMinutes = minutes
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FaceVideo) == "" {
		if value, ok := lookupTrimmed("FACE_VIDEO_PATH"); ok {
			c.Paths.FaceVideo = value
		} else {
			c.Paths.FaceVideo = filepath.Join(c.Paths.DataDir, "face", "face.mp4")
		}
	}
	if c.Paths.FaceVideo, err = expandPath(c.Paths.FaceVideo); err != nil {
		return fmt.Errorf("paths.face_video: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupAudio) == "" {
		c.Paths.BackupAudio = filepath.Join(c.Paths.DataDir, "audio", "backup.mp3")
	}
	if c.Paths.BackupAudio, err = expandPath(c.Paths.BackupAudio); err != nil {
		return fmt.Errorf("paths.backup_audio: %w", err)
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := lookupTrimmed("SHORTSFACTORY_API_TOKEN"); ok {
			c.API.Token = value
		}
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.BatchSize <= 0 {
		c.Workflow.BatchSize = defaultBatchSize
	}
	c.Workflow.Timezone = strings.TrimSpace(c.Workflow.Timezone)
	if c.Workflow.Timezone == "" {
		c.Workflow.Timezone = defaultTimezone
	}
}

func (c *Config) normalizeScheduler() {
	defaults := defaultIntervals()
	if c.Scheduler.Intervals == nil {
		c.Scheduler.Intervals = defaults
		return
	}
	for job, minutes := range defaults {
		if _, ok := c.Scheduler.Intervals[job]; !ok {
			c.Scheduler.Intervals[job] = minutes
		}
	}
}

func (c *Config) normalizePublish() {
	if c.Publish.MetricoolToken == "" {
		c.Publish.MetricoolToken, _ = lookupTrimmed("METRICOOL_TOKEN")
	}
	if c.Publish.MetricoolUserID == "" {
		c.Publish.MetricoolUserID, _ = lookupTrimmed("METRICOOL_USER_ID")
	}
	if c.Publish.MetricoolBlogID == "" {
		c.Publish.MetricoolBlogID, _ = lookupTrimmed("METRICOOL_BLOG_ID")
	}
	if value, ok := lookupTrimmed("METRICOOL_PLATFORMS"); ok {
		c.Publish.Platforms = strings.Split(value, ",")
	}
	platforms := make([]string, 0, len(c.Publish.Platforms))
	seen := make(map[string]struct{}, len(c.Publish.Platforms))
	for _, platform := range c.Publish.Platforms {
		normalized := strings.ToUpper(strings.TrimSpace(platform))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		platforms = append(platforms, normalized)
	}
	c.Publish.Platforms = platforms
	c.Publish.MetricoolBaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.MetricoolBaseURL), "/")
	if c.Publish.MetricoolBaseURL == "" {
		c.Publish.MetricoolBaseURL = defaultMetricoolBaseURL
	}
	if strings.TrimSpace(c.Publish.MetricoolTimezone) == "" {
		c.Publish.MetricoolTimezone = c.Workflow.Timezone
	}
	if strings.TrimSpace(c.Publish.UploadURL) == "" {
		c.Publish.UploadURL = defaultUploadURL
	}
	if strings.TrimSpace(c.Publish.DefaultCaption) == "" {
		c.Publish.DefaultCaption = defaultCaption
	}
	if c.Publish.RequestTimeoutSeconds <= 0 {
		c.Publish.RequestTimeoutSeconds = defaultPublishTimeoutSeconds
	}
}

func (c *Config) normalizeDiscover() {
	c.Discover.BaseURL = strings.TrimRight(strings.TrimSpace(c.Discover.BaseURL), "/")
	if c.Discover.BaseURL == "" {
		c.Discover.BaseURL = defaultRedditBaseURL
	}
	if strings.TrimSpace(c.Discover.UserAgent) == "" {
		c.Discover.UserAgent = defaultRedditUserAgent
	}
	subs := make([]string, 0, len(c.Discover.Subreddits))
	for _, sub := range c.Discover.Subreddits {
		sub = strings.TrimPrefix(strings.TrimSpace(sub), "r/")
		if sub != "" {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		subs = defaultSubreddits()
	}
	c.Discover.Subreddits = subs
	if strings.TrimSpace(c.Discover.YtDlpBinary) == "" {
		c.Discover.YtDlpBinary = defaultYtDlpBinary
	}
	if c.Discover.MaxDownloadsPerRun <= 0 {
		c.Discover.MaxDownloadsPerRun = defaultMaxDownloadsPerRun
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey, _ = lookupTrimmed("OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.BatchSize <= 0 {
		c.LLM.BatchSize = defaultLLMBatchSize
	}
}

func (c *Config) normalizeMedia() {
	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Media.PythonBinary) == "" {
		c.Media.PythonBinary = defaultPythonBinary
	}
	if strings.TrimSpace(c.Media.WhisperModel) == "" {
		c.Media.WhisperModel = defaultWhisperModel
	}
	if c.Media.CaptionGroupSize <= 0 {
		c.Media.CaptionGroupSize = defaultCaptionGroupSize
	}
	if strings.TrimSpace(c.Media.DefaultLanguage) == "" {
		c.Media.DefaultLanguage = defaultLanguage
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.SMTPUser == "" {
		c.Notifications.SMTPUser, _ = lookupTrimmed("GMAIL_USER")
	}
	if c.Notifications.SMTPPassword == "" {
		c.Notifications.SMTPPassword, _ = lookupTrimmed("GMAIL_APP_PASSWORD")
	}
	if c.Notifications.EmailTo == "" {
		c.Notifications.EmailTo, _ = lookupTrimmed("ERROR_NOTIFY_EMAIL")
	}
	if strings.TrimSpace(c.Notifications.SMTPHost) == "" {
		c.Notifications.SMTPHost = defaultSMTPHost
	}
	if c.Notifications.SMTPPort <= 0 {
		c.Notifications.SMTPPort = defaultSMTPPort
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "json", "console":
	default:
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if strings.TrimSpace(c.Logging.File) != "" {
		if expanded, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = expanded
		}
	}
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
