// Package runlog persists pipeline run history in SQLite: one row per run,
// updated as the run moves through its stages. The history feeds the runs
// listing command and nothing in the pipeline depends on it succeeding.
package runlog
