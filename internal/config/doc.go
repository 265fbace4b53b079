// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NULLBR_API_KEY. The Config type centralizes every knob the daemon and CLI
// need: search provider credentials, resource-type priorities, transfer
// backend endpoints and credentials, target folders, and timeouts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a canonical priority order, and clear validation errors.
package config
