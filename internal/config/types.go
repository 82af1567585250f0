package config

import (
	"time"

	"devrelay/internal/routing"
)

type RedisConfig struct {
	Host     string
	Password string
	DB       int
	DedupTTL time.Duration
}

type Config struct {
	AppName             string
	Server              string
	User                string
	Password            string
	Secret              string
	Port                int
	DefaultRoom         string
	LoginURL            string
	LogFilePath         string
	MetricsPath         string
	RateLimitMax        int
	RateLimitExpiration time.Duration
	GitHubAPIUser       string
	GitHubAPIPassword   string
	Redis               RedisConfig
	Projects            map[string]routing.RoomConfiguration
	UsernameAliases     map[string]string
}
