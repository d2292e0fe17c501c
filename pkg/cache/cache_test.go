package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

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

func TestEnsureRequirepass(t *testing.T) {
	tests := []struct {
		name       string
		conf       string
		wantChange bool
	}{
		{
			name:       "empty config",
			conf:       "",
			wantChange: true,
		},
		{
			name:       "no requirepass",
			conf:       "port 6379\nbind 127.0.0.1\n",
			wantChange: true,
		},
		{
			name:       "commented requirepass only",
			conf:       "port 6379\n# requirepass foobared\n",
			wantChange: true,
		},
		{
			name:       "existing requirepass untouched",
			conf:       "port 6379\nrequirepass alreadyset\n",
			wantChange: false,
		},
		{
			name:       "indented requirepass counts",
			conf:       "  requirepass alreadyset\n",
			wantChange: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, changed := EnsureRequirepass(tt.conf, "newpw")
			assert.Equal(t, tt.wantChange, changed)
			if changed {
				assert.Contains(t, updated, "requirepass newpw\n")
			} else {
				assert.Equal(t, tt.conf, updated)
			}
		})
	}
}

func newCacheStep(t *testing.T, conf string, pinged *[]string) (*Step, string, *execx.Fake) {
	t.Helper()

	confPath := filepath.Join(t.TempDir(), "redis.conf")
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0o640))

	fake := execx.NewFake()
	fake.Respond("systemctl is-active redis-server.service", execx.Response{Stdout: "active"})

	step := &Step{
		Systemd: supervisor.NewSystemd(fake),
		Cfg: config.CacheConfig{
			ConfPath: confPath,
			Password: "cachepw",
			Host:     "127.0.0.1",
			Port:     6379,
		},
		Ping: func(ctx context.Context, addr, password string) error {
			*pinged = append(*pinged, addr+"/"+password)
			return nil
		},
	}
	return step, confPath, fake
}

func TestCacheAddsRequirepassAndRestarts(t *testing.T) {
	var pinged []string
	step, confPath, fake := newCacheStep(t, "port 6379\n", &pinged)

	require.NoError(t, step.Run(context.Background()))

	content, err := os.ReadFile(confPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "requirepass cachepw")

	assert.True(t, fake.Ran("systemctl restart redis-server.service"))
	assert.Equal(t, []string{"127.0.0.1:6379/cachepw"}, pinged)
}

func TestCacheLeavesExistingPassword(t *testing.T) {
	var pinged []string
	step, confPath, fake := newCacheStep(t, "requirepass operatorpw\n", &pinged)

	require.NoError(t, step.Run(context.Background()))

	content, err := os.ReadFile(confPath)
	require.NoError(t, err)
	assert.Equal(t, "requirepass operatorpw\n", string(content))
	assert.False(t, fake.Ran("systemctl restart redis-server.service"))
}

func TestCachePingFailure(t *testing.T) {
	var pinged []string
	step, _, _ := newCacheStep(t, "port 6379\n", &pinged)
	step.Ping = func(ctx context.Context, addr, password string) error {
		return assert.AnError
	}

	err := step.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}
