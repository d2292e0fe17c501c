// Package monitor watches the deployed application and restarts its service
// unit when the liveness probe fails repeatedly. It runs either as a
// one-shot check from cron or as a daemon exposing Prometheus metrics and a
// JSON health endpoint.
package monitor
