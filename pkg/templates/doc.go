// Package templates renders the system files curedeploy installs: the
// gunicorn systemd unit, the nginx site config, the logrotate policy, the
// application env file, and the health-check cron entry. Templates are
// embedded in the binary so a deploy needs nothing beyond curedeploy itself.
package templates
