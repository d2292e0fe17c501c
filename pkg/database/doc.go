// Package database provisions the application's PostgreSQL role, database
// and grants over an administrative pgx connection, starting the server
// first if it is not running.
package database
