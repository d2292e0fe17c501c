package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/wellcareplus/curedeploy/pkg/config"
)

//go:embed files/*.tmpl
var files embed.FS

// Data carries everything the embedded templates can reference. All fields
// derive from the deploy config plus the few runtime values (binary path,
// config path) only the caller knows.
type Data struct {
	AppName           string
	User              string
	Group             string
	InstallDir        string
	VenvDir           string
	EnvFile           string
	BindAddr          string
	ServerName        string
	ClientMaxBodySize string
	SecretKey         string
	AllowedHosts      string
	DatabaseURL       string
	RedisURL          string
	CronSchedule      string
	BinaryPath        string
	ConfigPath        string
}

// FromConfig builds template data from the deploy config.
func FromConfig(cfg *config.Config) Data {
	return Data{
		AppName:           cfg.App.Name,
		User:              cfg.App.User,
		Group:             cfg.App.Group,
		InstallDir:        cfg.App.InstallDir,
		VenvDir:           cfg.App.InstallDir + "/venv",
		EnvFile:           cfg.App.InstallDir + "/.env",
		BindAddr:          cfg.App.BindAddr,
		ServerName:        cfg.Web.ServerName,
		ClientMaxBodySize: cfg.Web.ClientMaxBodySize,
		SecretKey:         cfg.App.SecretKey,
		AllowedHosts:      strings.Join(cfg.App.AllowedHosts, ","),
		DatabaseURL:       cfg.DatabaseURL(),
		RedisURL:          cfg.RedisURL(),
		CronSchedule:      cfg.Monitor.CronSchedule,
	}
}

// Render executes the named embedded template (without the .tmpl suffix).
func Render(name string, data Data) (string, error) {
	raw, err := files.ReadFile("files/" + name + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("unknown template %q: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return buf.String(), nil
}
