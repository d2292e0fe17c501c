package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

// Conn is the slice of pgx.Conn the provisioner needs, kept narrow so tests
// can substitute a recording fake.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// ConnectFunc opens an administrative connection to the database server.
type ConnectFunc func(ctx context.Context, dsn string) (Conn, error)

// PgxConnect is the production ConnectFunc backed by pgx.
func PgxConnect(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Step provisions the PostgreSQL role, database and grants the application
// needs. All statements converge on re-runs: an existing role gets its
// password refreshed, an existing database is left in place.
type Step struct {
	Systemd *supervisor.Systemd
	Cfg     config.DatabaseConfig
	Connect ConnectFunc

	// ConnectTimeout bounds the wait for the server to accept connections
	// after it was just started.
	ConnectTimeout time.Duration
}

func (s *Step) Name() string { return "database" }

func (s *Step) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if err := s.Systemd.EnsureActive(ctx, "postgresql.service"); err != nil {
		return err
	}

	connect := s.Connect
	if connect == nil {
		connect = PgxConnect
	}

	conn, err := s.connectWithRetry(ctx, connect)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	role := QuoteIdent(s.Cfg.User)
	db := QuoteIdent(s.Cfg.Name)
	password := QuoteLiteral(s.Cfg.Password)

	createRole := fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s", role, password)
	if _, err := conn.Exec(ctx, createRole); err != nil {
		if !isDuplicate(err) {
			return fmt.Errorf("failed to create role %s: %w", s.Cfg.User, err)
		}
		logger.Info().Str("role", s.Cfg.User).Msg("role exists, refreshing password")
		alter := fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", role, password)
		if _, err := conn.Exec(ctx, alter); err != nil {
			return fmt.Errorf("failed to update role %s: %w", s.Cfg.User, err)
		}
	}

	createDB := fmt.Sprintf("CREATE DATABASE %s OWNER %s", db, role)
	if _, err := conn.Exec(ctx, createDB); err != nil {
		if !isDuplicate(err) {
			return fmt.Errorf("failed to create database %s: %w", s.Cfg.Name, err)
		}
		logger.Info().Str("database", s.Cfg.Name).Msg("database exists")
	}

	grant := fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", db, role)
	if _, err := conn.Exec(ctx, grant); err != nil {
		return fmt.Errorf("failed to grant privileges: %w", err)
	}

	// Connection defaults Django expects.
	for _, setting := range []string{
		fmt.Sprintf("ALTER ROLE %s SET client_encoding TO 'utf8'", role),
		fmt.Sprintf("ALTER ROLE %s SET default_transaction_isolation TO 'read committed'", role),
		fmt.Sprintf("ALTER ROLE %s SET timezone TO 'UTC'", role),
	} {
		if _, err := conn.Exec(ctx, setting); err != nil {
			return fmt.Errorf("failed to set role defaults: %w", err)
		}
	}

	logger.Info().Str("database", s.Cfg.Name).Str("role", s.Cfg.User).Msg("database provisioned")
	return nil
}

func (s *Step) connectWithRetry(ctx context.Context, connect ConnectFunc) (Conn, error) {
	timeout := s.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		conn, err := connect(ctx, s.Cfg.AdminDSN)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// isDuplicate reports whether err is postgres telling us the object already
// exists.
func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.DuplicateObject, pgerrcode.DuplicateDatabase, pgerrcode.UniqueViolation:
		return true
	}
	return false
}

// QuoteIdent quotes a SQL identifier. DDL statements cannot take bind
// parameters, so identifiers from the config are quoted explicitly.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal.
func QuoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
