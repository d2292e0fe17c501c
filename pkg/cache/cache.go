package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

// PingFunc verifies an authenticated connection to the cache.
type PingFunc func(ctx context.Context, addr, password string) error

// RedisPing is the production PingFunc backed by go-redis.
func RedisPing(ctx context.Context, addr, password string) error {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	defer client.Close()
	return client.Ping(ctx).Err()
}

// Step secures the Redis instance backing the Django cache: it appends a
// requirepass directive if the config has none, restarts the server, and
// verifies an authenticated PING round-trips.
type Step struct {
	Systemd *supervisor.Systemd
	Cfg     config.CacheConfig
	Ping    PingFunc
}

func (s *Step) Name() string { return "cache" }

func (s *Step) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if err := s.Systemd.EnsureActive(ctx, "redis-server.service"); err != nil {
		return err
	}

	if s.Cfg.Password != "" {
		raw, err := os.ReadFile(s.Cfg.ConfPath)
		if err != nil {
			return fmt.Errorf("failed to read redis config: %w", err)
		}

		updated, changed := EnsureRequirepass(string(raw), s.Cfg.Password)
		if changed {
			logger.Info().Str("path", s.Cfg.ConfPath).Msg("adding requirepass to redis config")
			if err := os.WriteFile(s.Cfg.ConfPath, []byte(updated), 0o640); err != nil {
				return fmt.Errorf("failed to write redis config: %w", err)
			}
			if err := s.Systemd.Restart(ctx, "redis-server.service"); err != nil {
				return fmt.Errorf("failed to restart redis: %w", err)
			}
		}
	}

	ping := s.Ping
	if ping == nil {
		ping = RedisPing
	}

	addr := fmt.Sprintf("%s:%d", s.Cfg.Host, s.Cfg.Port)
	if err := ping(ctx, addr, s.Cfg.Password); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info().Str("addr", addr).Msg("cache reachable")
	return nil
}

// EnsureRequirepass appends a requirepass directive to a redis config unless
// an uncommented one is already present. Existing directives are left alone:
// overwriting an operator-set password would lock the app out.
func EnsureRequirepass(conf, password string) (string, bool) {
	for _, line := range strings.Split(conf, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "requirepass ") || trimmed == "requirepass" {
			return conf, false
		}
	}

	if conf != "" && !strings.HasSuffix(conf, "\n") {
		conf += "\n"
	}
	return conf + "requirepass " + password + "\n", true
}
