package system

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
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	m.Run()
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name    string
		euid    int
		goos    string
		missing string
		wantErr string
	}{
		{name: "root on linux", euid: 0, goos: "linux"},
		{name: "not root", euid: 1000, goos: "linux", wantErr: "root"},
		{name: "not linux", euid: 0, goos: "darwin", wantErr: "linux"},
		{name: "no apt", euid: 0, goos: "linux", missing: "apt-get", wantErr: "apt-get"},
		{name: "no systemctl", euid: 0, goos: "linux", missing: "systemctl", wantErr: "systemctl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := execx.NewFake()
			if tt.missing != "" {
				fake.MarkMissing(tt.missing)
			}

			step := &PreflightStep{
				Runner:  fake,
				Geteuid: func() int { return tt.euid },
				GOOS:    tt.goos,
			}

			err := step.Run(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPackagesAlreadyDone(t *testing.T) {
	fake := execx.NewFake()
	fake.Respond("dpkg-query", execx.Response{Stdout: "install ok installed"})

	step := &PackagesStep{Runner: fake, Packages: []string{"nginx", "git"}}

	done, note, err := step.AlreadyDone(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, note, "installed")
}

func TestPackagesInstallsMissing(t *testing.T) {
	fake := execx.NewFake()
	fake.Respond("dpkg-query -W -f ${Status} nginx", execx.Response{Stdout: "install ok installed"})
	fake.Respond("dpkg-query -W -f ${Status} git", execx.Response{Err: execx.ErrScripted})

	step := &PackagesStep{Runner: fake, Packages: []string{"nginx", "git"}}
	require.NoError(t, step.Run(context.Background()))

	assert.True(t, fake.Ran("apt-get update"))
	assert.True(t, fake.Ran("DEBIAN_FRONTEND=noninteractive apt-get install -y git"))
	assert.False(t, fake.Ran("DEBIAN_FRONTEND=noninteractive apt-get install -y nginx"))
}

func TestPackagesAptUpdateFailure(t *testing.T) {
	fake := execx.NewFake()
	fake.FailWith("apt-get update", execx.ErrScripted)

	step := &PackagesStep{Runner: fake}
	err := step.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apt-get update")
}

func TestAccountAlreadyExists(t *testing.T) {
	fake := execx.NewFake()
	fake.Respond("id -u wellcareplus", execx.Response{Stdout: "998"})

	step := &AccountStep{Runner: fake, User: "wellcareplus", Group: "wellcareplus", Home: "/opt/wellcareplus"}

	done, note, err := step.AlreadyDone(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, note, "wellcareplus")
}

func TestAccountCreatesUserAndGroup(t *testing.T) {
	fake := execx.NewFake()
	fake.FailWith("id -u", execx.ErrScripted)
	fake.FailWith("getent group", execx.ErrScripted)

	step := &AccountStep{Runner: fake, User: "wellcareplus", Group: "wellcareplus", Home: "/opt/wellcareplus"}
	require.NoError(t, step.Run(context.Background()))

	assert.True(t, fake.Ran("groupadd --system wellcareplus"))
	assert.True(t, fake.Ran("useradd --system --gid wellcareplus --home-dir /opt/wellcareplus --no-create-home --shell /usr/sbin/nologin wellcareplus"))
}

func TestDirsCreatesTree(t *testing.T) {
	fake := execx.NewFake()
	installDir := filepath.Join(t.TempDir(), "app")

	step := &DirsStep{Runner: fake, InstallDir: installDir, User: "app", Group: "app"}
	require.NoError(t, step.Run(context.Background()))

	for _, sub := range []string{"logs", "media", "staticfiles", "run"} {
		info, err := os.Stat(filepath.Join(installDir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}

	logsInfo, err := os.Stat(filepath.Join(installDir, "logs"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), logsInfo.Mode().Perm())

	assert.True(t, fake.Ran("chown -R app:app "+installDir))
}

func TestLogrotateInstall(t *testing.T) {
	dir := t.TempDir()
	data := templates.Data{
		AppName:    "wellcareplus",
		User:       "wellcareplus",
		Group:      "wellcareplus",
		InstallDir: "/opt/wellcareplus",
	}

	step := &LogrotateStep{Data: data, Dir: dir}
	require.NoError(t, step.Run(context.Background()))

	content, err := os.ReadFile(filepath.Join(dir, "wellcareplus"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "/opt/wellcareplus/logs/*.log")
	assert.Contains(t, string(content), "postrotate")
}

func TestCronInstall(t *testing.T) {
	dir := t.TempDir()
	data := templates.Data{
		AppName:      "wellcareplus",
		InstallDir:   "/opt/wellcareplus",
		CronSchedule: "*/2 * * * *",
		BinaryPath:   "/usr/local/bin/curedeploy",
		ConfigPath:   "/etc/curedeploy/deploy.yaml",
	}

	step := &CronStep{Data: data, Dir: dir}
	require.NoError(t, step.Run(context.Background()))

	content, err := os.ReadFile(filepath.Join(dir, "wellcareplus-health"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "*/2 * * * * root /usr/local/bin/curedeploy health check")

	info, err := os.Stat(filepath.Join(dir, "wellcareplus-health"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
