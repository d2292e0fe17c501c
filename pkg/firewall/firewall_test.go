package firewall

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	m.Run()
}

func TestRulesOrdering(t *testing.T) {
	step := &Step{Cfg: config.FirewallConfig{Enabled: true, AllowSSH: true, ExtraPorts: []string{"8443/tcp"}}}

	rules := step.Rules()
	require.Len(t, rules, 8)

	assert.Equal(t, []string{"--force", "reset"}, rules[0])
	assert.Equal(t, []string{"default", "deny", "incoming"}, rules[1])
	assert.Equal(t, []string{"default", "allow", "outgoing"}, rules[2])
	assert.Equal(t, []string{"allow", "OpenSSH"}, rules[3])
	assert.Equal(t, []string{"allow", "80/tcp"}, rules[4])
	assert.Equal(t, []string{"allow", "443/tcp"}, rules[5])
	assert.Equal(t, []string{"allow", "8443/tcp"}, rules[6])
	assert.Equal(t, []string{"--force", "enable"}, rules[7])
}

func TestRulesWithoutSSH(t *testing.T) {
	step := &Step{Cfg: config.FirewallConfig{Enabled: true}}

	for _, rule := range step.Rules() {
		assert.NotContains(t, rule, "OpenSSH")
	}
}

func TestRunAppliesRules(t *testing.T) {
	fake := execx.NewFake()
	step := &Step{Runner: fake, Cfg: config.FirewallConfig{Enabled: true, AllowSSH: true}}

	require.NoError(t, step.Run(context.Background()))

	lines := fake.CommandLines()
	assert.Equal(t, "ufw --force reset", lines[0])
	assert.Equal(t, "ufw --force enable", lines[len(lines)-1])
	assert.True(t, fake.Ran("ufw allow OpenSSH"))
	assert.True(t, fake.Ran("ufw allow 80/tcp"))
	assert.True(t, fake.Ran("ufw allow 443/tcp"))
}

func TestRunDisabled(t *testing.T) {
	fake := execx.NewFake()
	step := &Step{Runner: fake, Cfg: config.FirewallConfig{Enabled: false}}

	require.NoError(t, step.Run(context.Background()))
	assert.Empty(t, fake.Calls())
}

func TestRunAbortsOnFailure(t *testing.T) {
	fake := execx.NewFake()
	fake.FailWith("ufw default deny incoming", execx.ErrScripted)

	step := &Step{Runner: fake, Cfg: config.FirewallConfig{Enabled: true, AllowSSH: true}}
	err := step.Run(context.Background())
	require.Error(t, err)
	assert.False(t, fake.Ran("ufw --force enable"), "enforcement must not be enabled after a failed rule")
}
