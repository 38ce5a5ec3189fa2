package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
	"shortsfactory/internal/daemonrun"
	"shortsfactory/internal/records"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the record store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *records.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withApp wires the full pipeline for one-shot commands. Pending failure
// notifications are flushed before returning.
func (c *commandContext) withApp(fn func(*daemonrun.App) error) error {
	return c.withStore(func(cfg *config.Config, store *records.Store) error {
		logger, err := daemonrun.NewLogger(cfg, daemonrun.Options{LogLevel: c.logLevel()})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		app := daemonrun.Build(cfg, store, logger, nil)
		defer app.Reporter.Wait()
		return fn(app)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
