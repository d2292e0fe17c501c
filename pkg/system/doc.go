// Package system implements the host-level provisioning steps: the
// preflight checks, OS package installation, the service account, the
// application file tree, and the logrotate and cron drop-ins.
package system
