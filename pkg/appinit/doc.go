// Package appinit brings the deployed Django application to a runnable
// state: environment file, migrations, static assets and the seeded admin
// account.
package appinit
