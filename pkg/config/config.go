package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the desired state of one provisioned host, loaded from
// deploy.yaml.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Web      WebConfig      `yaml:"web"`
	TLS      TLSConfig      `yaml:"tls"`
	Firewall FirewallConfig `yaml:"firewall"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`

	// StateDir holds the provisioning journal.
	StateDir string `yaml:"stateDir"`
}

// AppConfig describes the Django application being deployed.
type AppConfig struct {
	Name         string   `yaml:"name"`
	RepoURL      string   `yaml:"repoUrl"`
	Branch       string   `yaml:"branch"`
	User         string   `yaml:"user"`
	Group        string   `yaml:"group"`
	InstallDir   string   `yaml:"installDir"`
	BindAddr     string   `yaml:"bindAddr"`
	Python       string   `yaml:"python"`
	AllowedHosts []string `yaml:"allowedHosts"`

	// SecretKey is the Django SECRET_KEY. Generated when empty.
	SecretKey string `yaml:"secretKey"`

	// Admin seeds the initial superuser. Skipped when empty.
	Admin AdminConfig `yaml:"admin"`
}

// AdminConfig seeds the Django superuser non-interactively.
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// DatabaseConfig describes the PostgreSQL database to provision.
type DatabaseConfig struct {
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`

	// AdminDSN is the superuser connection used to create the role and
	// database, e.g. "postgres://postgres@localhost:5432/postgres".
	AdminDSN string `yaml:"adminDsn"`
}

// CacheConfig describes the Redis instance backing the Django cache.
type CacheConfig struct {
	ConfPath string `yaml:"confPath"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// WebConfig describes the nginx front end.
type WebConfig struct {
	ServerName        string `yaml:"serverName"`
	SitesAvailableDir string `yaml:"sitesAvailableDir"`
	SitesEnabledDir   string `yaml:"sitesEnabledDir"`
	ClientMaxBodySize string `yaml:"clientMaxBodySize"`
}

// TLSConfig controls the optional certbot step.
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Domain  string `yaml:"domain"`
	Email   string `yaml:"email"`
}

// FirewallConfig controls the ufw allow-list.
type FirewallConfig struct {
	Enabled    bool     `yaml:"enabled"`
	AllowSSH   bool     `yaml:"allowSsh"`
	ExtraPorts []string `yaml:"extraPorts"`
}

// MonitorConfig controls the health monitor.
type MonitorConfig struct {
	IntervalSeconds int    `yaml:"intervalSeconds"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	Retries         int    `yaml:"retries"`
	LivenessPath    string `yaml:"livenessPath"`
	CronSchedule    string `yaml:"cronSchedule"`
	ListenAddr      string `yaml:"listenAddr"`
}

// LoggingConfig controls curedeploy's own log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration matching the original WellCarePlusCure
// production deployment.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:         "wellcareplus",
			Branch:       "main",
			User:         "wellcareplus",
			Group:        "wellcareplus",
			InstallDir:   "/opt/wellcareplus",
			BindAddr:     "127.0.0.1:8000",
			Python:       "python3",
			AllowedHosts: []string{"localhost", "127.0.0.1"},
		},
		Database: DatabaseConfig{
			Name:     "wellcareplus",
			User:     "wellcareplus",
			Host:     "127.0.0.1",
			Port:     5432,
			AdminDSN: "postgres://postgres@localhost:5432/postgres",
		},
		Cache: CacheConfig{
			ConfPath: "/etc/redis/redis.conf",
			Host:     "127.0.0.1",
			Port:     6379,
		},
		Web: WebConfig{
			ServerName:        "_",
			SitesAvailableDir: "/etc/nginx/sites-available",
			SitesEnabledDir:   "/etc/nginx/sites-enabled",
			ClientMaxBodySize: "20m",
		},
		Firewall: FirewallConfig{
			Enabled:  true,
			AllowSSH: true,
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 60,
			TimeoutSeconds:  10,
			Retries:         3,
			LivenessPath:    "/health/",
			CronSchedule:    "*/2 * * * *",
			ListenAddr:      ":9877",
		},
		Logging:  LoggingConfig{Level: "info"},
		StateDir: "/var/lib/curedeploy",
	}
}

// Load reads the YAML file at path, layers it over the defaults, fills in
// generated secrets, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.App.SecretKey == "" {
		if key := secretFromEnvFile(filepath.Join(cfg.App.InstallDir, ".env")); key != "" {
			cfg.App.SecretKey = key
		} else {
			key, err := GenerateSecretKey(50)
			if err != nil {
				return nil, fmt.Errorf("failed to generate secret key: %w", err)
			}
			cfg.App.SecretKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants a run cannot proceed without.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if strings.ContainsAny(c.App.Name, " /") {
		return fmt.Errorf("app.name %q must be a plain service name", c.App.Name)
	}
	if c.App.RepoURL == "" {
		return fmt.Errorf("app.repoUrl is required")
	}
	if !filepath.IsAbs(c.App.InstallDir) {
		return fmt.Errorf("app.installDir %q must be absolute", c.App.InstallDir)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d out of range", c.Database.Port)
	}
	if c.Cache.Port < 1 || c.Cache.Port > 65535 {
		return fmt.Errorf("cache.port %d out of range", c.Cache.Port)
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required")
	}
	if c.TLS.Enabled {
		if c.TLS.Domain == "" {
			return fmt.Errorf("tls.domain is required when tls is enabled")
		}
		if c.TLS.Email == "" {
			return fmt.Errorf("tls.email is required when tls is enabled")
		}
	}
	if c.Monitor.Retries < 1 {
		return fmt.Errorf("monitor.retries must be at least 1")
	}
	return nil
}

// secretFromEnvFile recovers a previously written SECRET_KEY from the
// deployed env file. Rotating the key on every re-provision would invalidate
// every Django session.
func secretFromEnvFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if value, ok := strings.CutPrefix(line, "SECRET_KEY="); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// Fingerprint returns a stable hash of the desired state. The secret key is
// excluded: it is generated when the config omits it, and hashing it would
// make every invocation look like a config change. Journal entries recorded
// under a different fingerprint are not trusted by --resume.
func (c *Config) Fingerprint() string {
	clone := *c
	clone.App.SecretKey = ""
	data, err := yaml.Marshal(&clone)
	if err != nil {
		// Marshal of a plain struct cannot fail; keep the signature simple.
		return "unknown"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ServiceName returns the systemd unit name for the app.
func (c *Config) ServiceName() string {
	return c.App.Name + ".service"
}

// DatabaseURL returns the DATABASE_URL the Django settings consume.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// RedisURL returns the REDIS_URL the Django cache consumes.
func (c *Config) RedisURL() string {
	if c.Cache.Password == "" {
		return fmt.Sprintf("redis://%s:%d/0", c.Cache.Host, c.Cache.Port)
	}
	return fmt.Sprintf("redis://:%s@%s:%d/0", c.Cache.Password, c.Cache.Host, c.Cache.Port)
}

// LivenessURL returns the gunicorn upstream URL the health monitor probes.
func (c *Config) LivenessURL() string {
	return fmt.Sprintf("http://%s%s", c.App.BindAddr, c.Monitor.LivenessPath)
}

const secretKeyChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecretKey produces an n-character alphanumeric secret using the
// crypto random source.
func GenerateSecretKey(n int) (string, error) {
	result := make([]byte, n)
	max := big.NewInt(int64(len(secretKeyChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = secretKeyChars[idx.Int64()]
	}
	return string(result), nil
}
