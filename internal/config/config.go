package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"devrelay/internal/routing"
)

// Load reads the bot configuration from the environment (prefix
// DEVRELAY_) with viper. Anything malformed is an error: the bot either
// starts with a fully valid configuration or not at all.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("devrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_name", "devrelay")
	v.SetDefault("port", 3030)
	v.SetDefault("login_url", "https://play.pokemonshowdown.com/~~showdown/action.php")
	v.SetDefault("log_file_path", "")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("rate_limit_max", 100)
	v.SetDefault("rate_limit_expiration", "1m")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedup_ttl", "24h")

	cfg := &Config{
		AppName:             v.GetString("app_name"),
		Server:              v.GetString("server"),
		User:                v.GetString("user"),
		Password:            v.GetString("password"),
		Secret:              v.GetString("secret"),
		Port:                v.GetInt("port"),
		DefaultRoom:         v.GetString("room"),
		LoginURL:            v.GetString("login_url"),
		LogFilePath:         v.GetString("log_file_path"),
		MetricsPath:         v.GetString("metrics_path"),
		RateLimitMax:        v.GetInt("rate_limit_max"),
		RateLimitExpiration: v.GetDuration("rate_limit_expiration"),
		GitHubAPIUser:       v.GetString("github_api_user"),
		GitHubAPIPassword:   v.GetString("github_api_password"),
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			DedupTTL: v.GetDuration("redis.dedup_ttl"),
		},
	}

	var err error
	cfg.Projects, err = ParseProjects(v.GetString("project_configuration"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.UsernameAliases, err = ParseAliases(v.GetString("username_aliases"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// projectEntry is the wire schema of one DEVRELAY_PROJECT_CONFIGURATION
// entry. The decoder rejects unknown fields so that a typo in a room
// list key fails startup instead of silently dropping rooms.
type projectEntry struct {
	Rooms       []string `json:"rooms"`
	SimpleRooms []string `json:"simple_rooms"`
	Secret      string   `json:"secret"`
}

// ParseProjects decodes the project-routing JSON blob. An empty blob
// means no per-project configuration.
func ParseProjects(raw string) (map[string]routing.RoomConfiguration, error) {
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var entries map[string]projectEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("project configuration is not valid JSON: %w", err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fmt.Errorf("project configuration: %w", err)
	}
	projects := make(map[string]routing.RoomConfiguration, len(entries))
	for name, e := range entries {
		projects[name] = routing.RoomConfiguration{
			Rooms:       e.Rooms,
			SimpleRooms: e.SimpleRooms,
			Secret:      e.Secret,
		}
	}
	return projects, nil
}

// ParseAliases decodes the username-alias JSON blob, a flat map from
// any-case username to canonical display name.
func ParseAliases(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var aliases map[string]string
	if err := dec.Decode(&aliases); err != nil {
		return nil, fmt.Errorf("username aliases are not valid JSON: %w", err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fmt.Errorf("username aliases: %w", err)
	}
	return aliases, nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}
