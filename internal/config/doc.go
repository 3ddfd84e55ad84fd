// Package config loads, normalizes, and validates phieu configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the CLI and the
// pipeline need: workspace and output directories, AMIS endpoint settings,
// and document assembly markers.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
