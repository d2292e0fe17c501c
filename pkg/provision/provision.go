package provision

import (
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/appinit"
	"github.com/wellcareplus/curedeploy/pkg/cache"
	"github.com/wellcareplus/curedeploy/pkg/certs"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/database"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/firewall"
	"github.com/wellcareplus/curedeploy/pkg/pipeline"
	"github.com/wellcareplus/curedeploy/pkg/source"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
	"github.com/wellcareplus/curedeploy/pkg/system"
	"github.com/wellcareplus/curedeploy/pkg/templates"
	"github.com/wellcareplus/curedeploy/pkg/webserver"
)

// Steps assembles the full provisioning sequence for the given desired
// state. configPath is embedded in the installed cron entry so the periodic
// health check reads the same config this run used.
func Steps(cfg *config.Config, runner execx.Runner, configPath string) []pipeline.Step {
	systemd := supervisor.NewSystemd(runner)
	data := templates.FromConfig(cfg)

	// The cron entry runs from cron's own cwd; a relative -f value would
	// never resolve there.
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	data.ConfigPath = configPath

	steps := []pipeline.Step{
		&system.PreflightStep{Runner: runner},
		&system.PackagesStep{Runner: runner},
		&system.AccountStep{
			Runner: runner,
			User:   cfg.App.User,
			Group:  cfg.App.Group,
			Home:   cfg.App.InstallDir,
		},
		&system.DirsStep{
			Runner:     runner,
			InstallDir: cfg.App.InstallDir,
			User:       cfg.App.User,
			Group:      cfg.App.Group,
		},
		&source.GitStep{
			Runner:     runner,
			RepoURL:    cfg.App.RepoURL,
			Branch:     cfg.App.Branch,
			InstallDir: cfg.App.InstallDir,
			User:       cfg.App.User,
			Group:      cfg.App.Group,
		},
		&source.VenvStep{
			Runner:     runner,
			InstallDir: cfg.App.InstallDir,
			Python:     cfg.App.Python,
			User:       cfg.App.User,
		},
		&database.Step{Systemd: systemd, Cfg: cfg.Database},
		&cache.Step{Systemd: systemd, Cfg: cfg.Cache},
		&appinit.Step{Runner: runner, Cfg: cfg},
		&supervisor.UnitStep{Systemd: systemd, Data: data},
		&webserver.Step{
			Runner:            runner,
			Systemd:           systemd,
			Data:              data,
			SitesAvailableDir: cfg.Web.SitesAvailableDir,
			SitesEnabledDir:   cfg.Web.SitesEnabledDir,
		},
		&firewall.Step{Runner: runner, Cfg: cfg.Firewall},
		&system.LogrotateStep{Data: data},
		&system.CronStep{Data: data},
		&supervisor.StartStep{Systemd: systemd, Unit: cfg.ServiceName()},
	}

	if cfg.TLS.Enabled {
		steps = append(steps, &certs.Step{
			Runner:   runner,
			Systemd:  systemd,
			Cfg:      cfg.TLS,
			SitePath: filepath.Join(cfg.Web.SitesAvailableDir, cfg.App.Name),
		})
	}

	return steps
}
