// Package certs provisions TLS for the public site: it points the nginx
// server_name at the configured domain, requests a certificate through
// certbot's nginx plugin, and verifies the renewal timer is enabled.
package certs
