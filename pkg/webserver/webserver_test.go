package webserver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	m.Run()
}

func newWebserverStep(t *testing.T) (*Step, string, string, *execx.Fake) {
	t.Helper()

	available := t.TempDir()
	enabled := t.TempDir()

	fake := execx.NewFake()
	fake.Respond("systemctl is-active nginx.service", execx.Response{Stdout: "active"})

	step := &Step{
		Runner:  fake,
		Systemd: supervisor.NewSystemd(fake),
		Data: templates.Data{
			AppName:           "wellcareplus",
			InstallDir:        "/opt/wellcareplus",
			BindAddr:          "127.0.0.1:8000",
			ServerName:        "_",
			ClientMaxBodySize: "20m",
		},
		SitesAvailableDir: available,
		SitesEnabledDir:   enabled,
	}
	return step, available, enabled, fake
}

func TestInstallSite(t *testing.T) {
	step, available, enabled, fake := newWebserverStep(t)

	require.NoError(t, step.Run(context.Background()))

	content, err := os.ReadFile(filepath.Join(available, "wellcareplus"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "proxy_pass http://wellcareplus_app;")

	target, err := os.Readlink(filepath.Join(enabled, "wellcareplus"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(available, "wellcareplus"), target)

	assert.True(t, fake.Ran("nginx -t"))
	assert.True(t, fake.Ran("systemctl reload nginx.service"))
}

func TestInstallSiteRemovesDefault(t *testing.T) {
	step, _, enabled, _ := newWebserverStep(t)
	defaultSite := filepath.Join(enabled, "default")
	require.NoError(t, os.WriteFile(defaultSite, []byte("server {}"), 0o644))

	require.NoError(t, step.Run(context.Background()))

	_, err := os.Lstat(defaultSite)
	assert.True(t, os.IsNotExist(err), "default site must be removed")
}

func TestInstallSiteReplacesStaleLink(t *testing.T) {
	step, _, enabled, _ := newWebserverStep(t)
	stale := filepath.Join(enabled, "wellcareplus")
	require.NoError(t, os.Symlink("/nonexistent", stale))

	require.NoError(t, step.Run(context.Background()))

	target, err := os.Readlink(stale)
	require.NoError(t, err)
	assert.NotEqual(t, "/nonexistent", target)
}

func TestInstallSiteValidationFailure(t *testing.T) {
	step, _, _, fake := newWebserverStep(t)
	fake.FailWith("nginx -t", execx.ErrScripted)

	err := step.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
	assert.False(t, fake.Ran("systemctl reload nginx.service"))
}
