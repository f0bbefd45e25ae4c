// Package config loads and validates application settings from environment
// variables (KIOKU_* prefix) and an optional config.yaml, covering the server,
// database, scheduler and optimizer knobs.
package config
