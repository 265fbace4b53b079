// Package daemon runs the long-lived ferry process: it guards against
// concurrent instances with a file lock and serves the HTTP API that the
// CLI and chat frontends drive the engine through.
package daemon
