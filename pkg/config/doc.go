// Package config provides configuration loading, defaulting, and validation
// for Sentinel. Configuration is read from a single YAML file with optional
// SENTINEL_* environment variable overrides.
package config
