package execx

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	m.Run()
}

func TestSystemRun(t *testing.T) {
	runner := NewSystem()
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, "true"))

	err := runner.Run(ctx, "false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "false")
}

func TestSystemRunIncludesStderr(t *testing.T) {
	runner := NewSystem()

	err := runner.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSystemOutput(t *testing.T) {
	runner := NewSystem()

	out, err := runner.Output(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestSystemRunEnv(t *testing.T) {
	runner := NewSystem()
	ctx := context.Background()

	require.NoError(t, runner.RunEnv(ctx,
		[]string{"DEPLOY_TOKEN=s3cret"},
		"sh", "-c", `test "$DEPLOY_TOKEN" = s3cret`))

	err := runner.RunEnv(ctx, nil, "sh", "-c", `test -n "$DEPLOY_TOKEN"`)
	require.Error(t, err, "variable must not leak into unrelated commands")
}

func TestSystemLookPath(t *testing.T) {
	runner := NewSystem()

	assert.True(t, runner.LookPath("sh"))
	assert.False(t, runner.LookPath("definitely-not-a-real-binary"))
}

func TestFakeScripting(t *testing.T) {
	fake := NewFake()
	fake.Respond("dpkg-query -W", Response{Stdout: "install ok installed"})
	fake.FailWith("apt-get install", ErrScripted)

	ctx := context.Background()

	out, err := fake.Output(ctx, "dpkg-query", "-W", "-f", "${Status}", "nginx")
	require.NoError(t, err)
	assert.Equal(t, "install ok installed", out)

	err = fake.Run(ctx, "apt-get", "install", "-y", "nginx")
	assert.ErrorIs(t, err, ErrScripted)

	// Unscripted commands succeed.
	require.NoError(t, fake.Run(ctx, "systemctl", "daemon-reload"))

	assert.True(t, fake.Ran("apt-get install -y nginx"))
	assert.False(t, fake.Ran("ufw"))
	assert.Len(t, fake.Calls(), 3)
}

func TestFakeLongestPrefixWins(t *testing.T) {
	fake := NewFake()
	fake.Respond("systemctl is-active", Response{Stdout: "inactive"})
	fake.Respond("systemctl is-active nginx.service", Response{Stdout: "active"})

	out, err := fake.Output(context.Background(), "systemctl", "is-active", "nginx.service")
	require.NoError(t, err)
	assert.Equal(t, "active", out)

	out, err = fake.Output(context.Background(), "systemctl", "is-active", "redis-server.service")
	require.NoError(t, err)
	assert.Equal(t, "inactive", out)
}

func TestFakeRunEnv(t *testing.T) {
	fake := NewFake()
	fake.FailWith("DJANGO_SUPERUSER_USERNAME", ErrScripted)

	err := fake.RunEnv(context.Background(),
		[]string{"DJANGO_SUPERUSER_USERNAME=admin"},
		"runuser", "-u", "app", "--", "python")
	assert.ErrorIs(t, err, ErrScripted)
	assert.True(t, fake.Ran("DJANGO_SUPERUSER_USERNAME=admin runuser -u app"))
}

func TestFakeLookPath(t *testing.T) {
	fake := NewFake()
	fake.MarkMissing("certbot")

	assert.False(t, fake.LookPath("certbot"))
	assert.True(t, fake.LookPath("systemctl"))
}

func TestAsUser(t *testing.T) {
	cmd, args := AsUser("wellcareplus", "/opt/wellcareplus/venv/bin/pip", "install", "wheel")

	assert.Equal(t, "runuser", cmd)
	assert.Equal(t, []string{"-u", "wellcareplus", "--", "/opt/wellcareplus/venv/bin/pip", "install", "wheel"}, args)
}
