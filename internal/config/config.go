package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the data root and the assets the compositor reads.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	FaceVideo   string `toml:"face_video"`
	BackupAudio string `toml:"backup_audio"`
}

// API contains control surface settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Workflow contains cycle timing, retry accounting, and the day rollover zone.
type Workflow struct {
	CronIntervalMinutes     int    `toml:"cron_interval_minutes"`
	InitialRunDelaySeconds  int    `toml:"initial_run_delay_seconds"`
	BatchSize               int    `toml:"batch_size"`
	MaxAttempts             int    `toml:"max_attempts"`
	TransformTimeoutSeconds int    `toml:"transform_timeout_seconds"`
	JobTimeoutSeconds       int    `toml:"job_timeout_seconds"`
	ClaimTimeoutSeconds     int    `toml:"claim_timeout_seconds"`
	Timezone                string `toml:"timezone"`
}

// Scheduler controls the per-job interval timers.
type Scheduler struct {
	Enabled       bool           `toml:"enabled"`
	JitterSeconds int            `toml:"jitter_seconds"`
	Intervals     map[string]int `toml:"intervals"`
}

// Publish contains Metricool credentials and the daily quota policy.
type Publish struct {
	MetricoolToken        string   `toml:"metricool_token"`
	MetricoolUserID       string   `toml:"metricool_user_id"`
	MetricoolBlogID       string   `toml:"metricool_blog_id"`
	MetricoolBaseURL      string   `toml:"metricool_base_url"`
	MetricoolTimezone     string   `toml:"metricool_timezone"`
	Platforms             []string `toml:"platforms"`
	UploadURL             string   `toml:"upload_url"`
	MaxDaily              int      `toml:"max_daily"`
	SpacingMinutes        int      `toml:"spacing_minutes"`
	BaseOffsetMinutes     int      `toml:"base_offset_minutes"`
	DefaultCaption        string   `toml:"default_caption"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
}

// Discover contains the Reddit viral finder settings.
type Discover struct {
	Enabled                bool     `toml:"enabled"`
	BaseURL                string   `toml:"base_url"`
	UserAgent              string   `toml:"user_agent"`
	Subreddits             []string `toml:"subreddits"`
	MinUpvotes             int      `toml:"min_upvotes"`
	MaxDurationSeconds     int      `toml:"max_duration_seconds"`
	MaxDownloadsPerRun     int      `toml:"max_downloads_per_run"`
	DownloadTimeoutSeconds int      `toml:"download_timeout_seconds"`
	MinFileBytes           int64    `toml:"min_file_bytes"`
	YtDlpBinary            string   `toml:"ytdlp_binary"`
}

// LLM contains the chat completion settings used for publish captions.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	BatchSize      int     `toml:"batch_size"`
}

// Media contains external binary names and caption layout.
type Media struct {
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
	PythonBinary     string `toml:"python_binary"`
	WhisperModel     string `toml:"whisper_model"`
	CaptionGroupSize int    `toml:"caption_group_size"`
	MinAudioBytes    int64  `toml:"min_audio_bytes"`
	MinFreeDiskMiB   int64  `toml:"min_free_disk_mib"`
	DefaultLanguage  string `toml:"default_language"`
}

// Retention contains sweeper thresholds.
type Retention struct {
	OutMaxAgeHours      float64 `toml:"out_max_age_hours"`
	TempMaxAgeHours     float64 `toml:"temp_max_age_hours"`
	PublishedGraceHours float64 `toml:"published_grace_hours"`
	OrphanMaxAgeMinutes int     `toml:"orphan_max_age_minutes"`
}

// Notifications contains the failure reporter channels.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	SMTPUser       string `toml:"smtp_user"`
	SMTPPassword   string `toml:"smtp_password"`
	EmailTo        string `toml:"email_to"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates every setting the daemon and CLI need.
//
// Configuration sections by subsystem:
//   - Paths: data root, logs, compositor assets
//   - API: control surface bind address and optional bearer token
//   - Workflow: cycle interval, retry accounting, timeouts, timezone
//   - Scheduler: per-job interval timers
//   - Publish: Metricool credentials, platforms, daily quota
//   - Discover: Reddit viral finder
//   - LLM: publish caption generation
//   - Media: ffmpeg/ffprobe/whisper binaries and caption layout
//   - Retention: sweeper thresholds
//   - Notifications: failure reporter channels
//   - Logging: log format, level, rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Workflow      Workflow      `toml:"workflow"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Publish       Publish       `toml:"publish"`
	Discover      Discover      `toml:"discover"`
	LLM           LLM           `toml:"llm"`
	Media         Media         `toml:"media"`
	Retention     Retention     `toml:"retention"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shortsfactory/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shortsfactory.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the staged data directories and the log directory.
func (c *Config) EnsureDirectories() error {
	dirs := append(c.Paths.StageDirs(), c.Paths.LogDir, c.Paths.StateDir())
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InboxDir holds freshly downloaded clips and their sidecar metadata.
func (p Paths) InboxDir() string { return filepath.Join(p.DataDir, "inbox") }

// WorkDir holds collected clips awaiting composition.
func (p Paths) WorkDir() string { return filepath.Join(p.DataDir, "work") }

// OutDir holds edited and captioned artifacts.
func (p Paths) OutDir() string { return filepath.Join(p.DataDir, "out") }

// PublishedDir holds artifacts already handed to the scheduler API.
func (p Paths) PublishedDir() string { return filepath.Join(p.DataDir, "published") }

// TempDir holds transient audio and caption scripts.
func (p Paths) TempDir() string { return filepath.Join(p.DataDir, "temp") }

// StateDir holds the database and the daemon lock.
func (p Paths) StateDir() string { return filepath.Join(p.DataDir, "db") }

// DatabasePath returns the SQLite record store location.
func (p Paths) DatabasePath() string { return filepath.Join(p.StateDir(), "shorts.db") }

// LockPath returns the daemon single-instance lock file.
func (p Paths) LockPath() string { return filepath.Join(p.StateDir(), "shortsfactory.lock") }

// StageDirs lists the pipeline-managed directories in flow order.
func (p Paths) StageDirs() []string {
	return []string{p.InboxDir(), p.WorkDir(), p.OutDir(), p.PublishedDir(), p.TempDir()}
}

// CronInterval returns the outer full-cycle interval.
func (c *Config) CronInterval() time.Duration {
	return time.Duration(c.Workflow.CronIntervalMinutes) * time.Minute
}

// TransformTimeout bounds a single external transform invocation.
func (c *Config) TransformTimeout() time.Duration {
	return time.Duration(c.Workflow.TransformTimeoutSeconds) * time.Second
}

// JobTimeout bounds one whole job run; zero disables the bound.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workflow.JobTimeoutSeconds) * time.Second
}

// ClaimTimeout is the age after which an unfinished claim is considered abandoned.
func (c *Config) ClaimTimeout() time.Duration {
	return time.Duration(c.Workflow.ClaimTimeoutSeconds) * time.Second
}

// Location returns the zone used for calendar-day rollover.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Workflow.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// JobInterval returns the scheduler interval for a job, or zero when unknown.
func (c *Config) JobInterval(job string) time.Duration {
	minutes, ok := c.Scheduler.Intervals[job]
	if !ok || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
