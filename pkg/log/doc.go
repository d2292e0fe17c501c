// Package log provides structured logging for curedeploy built on zerolog.
//
// A single global logger is initialized once from the CLI flags and shared
// by all packages. Child loggers carry a component, step, or run_id field so
// every line of a provisioning run can be traced back to the step that
// emitted it.
package log
