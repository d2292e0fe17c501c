// Package provision assembles the ordered step sequence that takes a bare
// Ubuntu host to a running deployment: packages, account, file tree, source,
// virtualenv, database, cache, app initialization, systemd unit, nginx site,
// firewall, logrotate, health cron, service start, and optionally TLS.
package provision
