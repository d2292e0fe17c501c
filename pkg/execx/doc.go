// Package execx wraps execution of the external tools curedeploy drives
// (apt-get, systemctl, git, nginx, ufw, certbot and friends) behind a small
// Runner interface, with a scripted fake for tests.
package execx
