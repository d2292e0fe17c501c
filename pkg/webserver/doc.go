// Package webserver configures nginx as the reverse proxy in front of the
// gunicorn application server, serving static and media files directly.
package webserver
