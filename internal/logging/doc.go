// Package logging builds slog loggers for phieu.
//
// It provides the console (key=value) and JSON handlers shared by the CLI
// and the pipeline, typed attribute helpers, and context plumbing so run,
// record, and stage identifiers follow log records through every component.
package logging
