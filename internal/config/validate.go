package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var knownPlatforms = map[string]struct{}{
	"TIKTOK":    {},
	"INSTAGRAM": {},
	"FACEBOOK":  {},
	"YOUTUBE":   {},
}

// Validate ensures the configuration is usable. Credentials for individual jobs
// are not required here; each job reports a setup failure when it runs without them.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateDiscover(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.cron_interval_minutes":     c.Workflow.CronIntervalMinutes,
		"workflow.max_attempts":              c.Workflow.MaxAttempts,
		"workflow.transform_timeout_seconds": c.Workflow.TransformTimeoutSeconds,
		"workflow.claim_timeout_seconds":     c.Workflow.ClaimTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.InitialRunDelaySeconds < 0 {
		return errors.New("workflow.initial_run_delay_seconds must not be negative")
	}
	if c.Workflow.JobTimeoutSeconds < 0 {
		return errors.New("workflow.job_timeout_seconds must not be negative")
	}
	if _, err := time.LoadLocation(c.Workflow.Timezone); err != nil {
		return fmt.Errorf("workflow.timezone %q: %w", c.Workflow.Timezone, err)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.JitterSeconds < 0 {
		return errors.New("scheduler.jitter_seconds must not be negative")
	}
	valid := make(map[string]struct{}, len(JobOrder))
	for _, job := range JobOrder {
		valid[job] = struct{}{}
	}
	for job, minutes := range c.Scheduler.Intervals {
		if _, ok := valid[job]; !ok {
			return fmt.Errorf("scheduler.intervals: unknown job %q", job)
		}
		if minutes < 0 {
			return fmt.Errorf("scheduler.intervals.%s must not be negative", job)
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.MaxDaily <= 0 {
		return errors.New("publish.max_daily must be positive")
	}
	if c.Publish.SpacingMinutes < 0 || c.Publish.BaseOffsetMinutes < 0 {
		return errors.New("publish.spacing_minutes and publish.base_offset_minutes must not be negative")
	}
	if len(c.Publish.Platforms) == 0 {
		return errors.New("publish.platforms must include at least one platform")
	}
	for _, platform := range c.Publish.Platforms {
		if _, ok := knownPlatforms[platform]; !ok {
			return fmt.Errorf("publish.platforms: unsupported platform %q", platform)
		}
	}
	if _, err := time.LoadLocation(c.Publish.MetricoolTimezone); err != nil {
		return fmt.Errorf("publish.metricool_timezone %q: %w", c.Publish.MetricoolTimezone, err)
	}
	return nil
}

func (c *Config) validateDiscover() error {
	if !c.Discover.Enabled {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"discover.min_upvotes":              c.Discover.MinUpvotes,
		"discover.max_duration_seconds":     c.Discover.MaxDurationSeconds,
		"discover.download_timeout_seconds": c.Discover.DownloadTimeoutSeconds,
	})
}

func (c *Config) validateRetention() error {
	if c.Retention.OutMaxAgeHours <= 0 {
		return errors.New("retention.out_max_age_hours must be positive")
	}
	if c.Retention.TempMaxAgeHours <= 0 {
		return errors.New("retention.temp_max_age_hours must be positive")
	}
	if c.Retention.PublishedGraceHours < 0 {
		return errors.New("retention.published_grace_hours must not be negative")
	}
	if c.Retention.OrphanMaxAgeMinutes <= 0 {
		return errors.New("retention.orphan_max_age_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported level %q", c.Logging.Level)
	}
	if strings.TrimSpace(c.Logging.File) != "" && c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be positive when logging.file is set")
	}
	return nil
}

// EmailConfigured reports whether every SMTP credential needed for failure emails is present.
func (c *Config) EmailConfigured() bool {
	n := c.Notifications
	return strings.TrimSpace(n.SMTPUser) != "" && strings.TrimSpace(n.SMTPPassword) != "" && strings.TrimSpace(n.EmailTo) != ""
}

// PublishConfigured reports whether Metricool credentials are present.
func (c *Config) PublishConfigured() bool {
	p := c.Publish
	return p.MetricoolToken != "" && p.MetricoolUserID != "" && p.MetricoolBlogID != ""
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
