// Package firewall applies the ufw allow-list: deny inbound by default,
// allow SSH, HTTP, HTTPS and any extra configured ports.
package firewall
