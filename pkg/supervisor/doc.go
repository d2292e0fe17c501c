// Package supervisor manages systemd units: installing the rendered
// application unit, enabling packaged services, and the final start-and-wait
// step that gates a successful provisioning run.
package supervisor
