package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"devrelay/internal/logger"
	"devrelay/internal/utils"
)

func Validate(cfg *Config) error {
	if err := utils.ValidateNonEmptyString(cfg.AppName, "APP_NAME"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidateRegexString(cfg.AppName, "APP_NAME", `^[a-zA-Z0-9-]+$`); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := utils.ValidateNonEmptyString(cfg.Server, "DEVRELAY_SERVER"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidateWebsocketURL(cfg.Server, "DEVRELAY_SERVER"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidateNonEmptyString(cfg.User, "DEVRELAY_USER"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidateNonEmptyString(cfg.Password, "DEVRELAY_PASSWORD"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := utils.ValidateNonEmptyString(cfg.Secret, "DEVRELAY_SECRET"); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := utils.ValidatePort(cfg.Port, "port"); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := utils.ValidateHTTPURL(cfg.LoginURL, "login URL"); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cfg.DefaultRoom == "" && len(cfg.Projects) == 0 {
		logger.Log.Error("no room configuration",
			zap.String("hint", "set DEVRELAY_ROOM or DEVRELAY_PROJECT_CONFIGURATION"))
		return fmt.Errorf("config: at least one of DEVRELAY_ROOM or DEVRELAY_PROJECT_CONFIGURATION must be provided")
	}

	if cfg.LogFilePath != "" {
		dir := filepath.Dir(cfg.LogFilePath)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				logger.Log.Error("failed to create log file directory", zap.String("dir", dir), zap.Error(err))
				return fmt.Errorf("config: failed to create log file directory %s: %w", dir, err)
			}
		}
	}

	if cfg.MetricsPath == "" || cfg.MetricsPath[0] != '/' {
		logger.Log.Error("invalid metrics path", zap.String("metrics_path", cfg.MetricsPath))
		return fmt.Errorf("config: invalid metrics path: %s, must be non-empty and start with /", cfg.MetricsPath)
	}

	if err := utils.ValidatePositiveInt(cfg.RateLimitMax, "rate limit max"); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.RateLimitExpiration <= 0 {
		logger.Log.Error("invalid rate limit expiration", zap.Duration("rate_limit_expiration", cfg.RateLimitExpiration))
		return fmt.Errorf("config: invalid rate limit expiration: %v, must be positive", cfg.RateLimitExpiration)
	}

	if cfg.GitHubAPIUser != "" {
		if err := utils.ValidateNonEmptyString(cfg.GitHubAPIPassword, "DEVRELAY_GITHUB_API_PASSWORD"); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if cfg.Redis.Host != "" && cfg.Redis.DedupTTL <= 0 {
		logger.Log.Error("invalid redis dedup TTL", zap.Duration("dedup_ttl", cfg.Redis.DedupTTL))
		return fmt.Errorf("config: invalid redis dedup TTL: %v, must be positive", cfg.Redis.DedupTTL)
	}

	return nil
}
