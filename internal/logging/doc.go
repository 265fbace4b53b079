// Package logging assembles the structured slog loggers used across ferry
// components.
//
// It owns the console/JSON handler selection, centralizes level and output
// plumbing, and exposes attr helpers plus a component-tagging constructor so
// backend clients, the router, and the daemon emit log lines with the same
// shape. A no-op logger is provided for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
