// Package config loads and validates the deploy.yaml file describing the
// desired state of a provisioned host: the application, its database, cache,
// web front end, firewall rules, and health monitoring.
package config
