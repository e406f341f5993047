// ABOUTME: Package documentation for configuration handling
// ABOUTME: YAML config with env expansion and duration parsing

// Package config loads the chatsync YAML configuration.
//
// The file lives at DefaultPath() unless overridden. ${VAR} references
// expand from the environment before parsing, and duration fields
// accept Go duration strings ("5m", "120s"). Fields absent from the
// file keep the Default() values, so a minimal config only needs what
// it changes.
package config
