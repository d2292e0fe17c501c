// Package health implements the liveness and readiness probes used by the
// health monitor: an HTTP check against the gunicorn upstream, a TCP check
// for backing services, and the rolling Status that decides when a restart
// is warranted.
package health
