package database

import (
	"context"
	"io"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	m.Run()
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"wellcareplus"`, QuoteIdent("wellcareplus"))
	assert.Equal(t, `"odd""name"`, QuoteIdent(`odd"name`))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'s3cret'`, QuoteLiteral("s3cret"))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
}

// fakeConn records executed SQL and fails statements by prefix.
type fakeConn struct {
	executed []string
	fail     map[string]error
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	c.executed = append(c.executed, sql)
	for prefix, err := range c.fail {
		if len(sql) >= len(prefix) && sql[:len(prefix)] == prefix {
			return nil, err
		}
	}
	return pgconn.CommandTag("OK"), nil
}

func (c *fakeConn) Close(ctx context.Context) error { return nil }

func duplicateErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "already exists"}
}

func newStep(conn *fakeConn, systemdFake *execx.Fake) *Step {
	return &Step{
		Systemd: supervisor.NewSystemd(systemdFake),
		Cfg: config.DatabaseConfig{
			Name:     "wellcareplus",
			User:     "wellcareplus",
			Password: "pw",
			AdminDSN: "postgres://postgres@localhost:5432/postgres",
		},
		Connect: func(ctx context.Context, dsn string) (Conn, error) {
			return conn, nil
		},
	}
}

func activeSystemd() *execx.Fake {
	fake := execx.NewFake()
	fake.Respond("systemctl is-active postgresql.service", execx.Response{Stdout: "active"})
	return fake
}

func TestProvisionFreshDatabase(t *testing.T) {
	conn := &fakeConn{}
	step := newStep(conn, activeSystemd())

	require.NoError(t, step.Run(context.Background()))

	require.Len(t, conn.executed, 6)
	assert.Equal(t, `CREATE ROLE "wellcareplus" WITH LOGIN PASSWORD 'pw'`, conn.executed[0])
	assert.Equal(t, `CREATE DATABASE "wellcareplus" OWNER "wellcareplus"`, conn.executed[1])
	assert.Equal(t, `GRANT ALL PRIVILEGES ON DATABASE "wellcareplus" TO "wellcareplus"`, conn.executed[2])
	assert.Contains(t, conn.executed[3], "client_encoding")
	assert.Contains(t, conn.executed[4], "default_transaction_isolation")
	assert.Contains(t, conn.executed[5], "timezone")
}

func TestProvisionExistingRoleAndDatabase(t *testing.T) {
	conn := &fakeConn{fail: map[string]error{
		"CREATE ROLE":     duplicateErr(pgerrcode.DuplicateObject),
		"CREATE DATABASE": duplicateErr(pgerrcode.DuplicateDatabase),
	}}
	step := newStep(conn, activeSystemd())

	require.NoError(t, step.Run(context.Background()))

	assert.Contains(t, conn.executed, `ALTER ROLE "wellcareplus" WITH LOGIN PASSWORD 'pw'`)
	assert.Contains(t, conn.executed, `GRANT ALL PRIVILEGES ON DATABASE "wellcareplus" TO "wellcareplus"`)
}

func TestProvisionGrantFailure(t *testing.T) {
	conn := &fakeConn{fail: map[string]error{
		"GRANT": &pgconn.PgError{Code: pgerrcode.InsufficientPrivilege, Message: "denied"},
	}}
	step := newStep(conn, activeSystemd())

	err := step.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant")
}

func TestProvisionStartsPostgres(t *testing.T) {
	fake := execx.NewFake()
	fake.Respond("systemctl is-active postgresql.service", execx.Response{Stdout: "inactive", Err: execx.ErrScripted})

	conn := &fakeConn{}
	step := newStep(conn, fake)
	require.NoError(t, step.Run(context.Background()))

	assert.True(t, fake.Ran("systemctl start postgresql.service"))
	assert.True(t, fake.Ran("systemctl enable postgresql.service"))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(duplicateErr(pgerrcode.DuplicateObject)))
	assert.True(t, isDuplicate(duplicateErr(pgerrcode.DuplicateDatabase)))
	assert.False(t, isDuplicate(duplicateErr(pgerrcode.InsufficientPrivilege)))
	assert.False(t, isDuplicate(assert.AnError))
}
