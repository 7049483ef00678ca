// Package config loads, normalizes, and validates mediagrab configuration.
//
// Configuration is read from TOML (explicit path, ~/.config/mediagrab/config.toml,
// or ./mediagrab.toml), overlaid on Default(), then expanded so every directory is
// absolute. A handful of environment variables override file values so container
// deployments can avoid writing a config file at all.
package config
