package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validatePlaylist(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.JSRuntime {
	case "", "node", "deno", "bun", "none":
	default:
		return fmt.Errorf("engine.js_runtime must be one of node, deno, bun or none (got %q)", c.Engine.JSRuntime)
	}
	return nil
}

func (c *Config) validatePlaylist() error {
	if c.Playlist.ExpandLimit < 0 {
		return errors.New("playlist.expand_limit must be >= 0")
	}
	switch c.Playlist.Enumerator {
	case EnumeratorEngine, EnumeratorNative:
		return nil
	default:
		return fmt.Errorf("playlist.enumerator must be %q or %q (got %q)", EnumeratorEngine, EnumeratorNative, c.Playlist.Enumerator)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrent < 0 {
		return errors.New("workflow.max_concurrent must be >= 0")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.RetentionHours <= 0 {
		return errors.New("cleanup.retention_hours must be positive")
	}
	if c.Cleanup.IntervalHours <= 0 {
		return errors.New("cleanup.interval_hours must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	u, err := url.Parse(topic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
