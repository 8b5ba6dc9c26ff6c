// Package config loads environment variables and provides a typed Config
// used across the service. It applies sensible defaults so the binary can
// run locally with minimal setup. For required credentials use
// ValidateLinkReady.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Discord
	DiscordBotToken  string
	DiscordAppID     string
	DiscordPublicKey string

	// Schoology
	SchoologyKey    string
	SchoologySecret string
	SchoologyDomain string

	// Link flow
	CallbackURL     string
	CohortSectionID string
	CohortName      string
	TokenTTL        time.Duration

	// Access control
	PrivilegedUserIDs []string
	MaintainerUserID  string

	// Teacher slug -> channel id overrides for channels that predate the
	// bot or deliberately deviate from the naming scheme.
	ChannelAlternates map[string]string

	// HTTP
	HTTPAddr  string
	WebOrigin string
}

// Load reads environment variables and applies defaults. It doesn't fail on
// missing credentials; use ValidateLinkReady() when the link flow must be
// operational.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordAppID = os.Getenv("DISCORD_APP_ID")
	cfg.DiscordPublicKey = os.Getenv("DISCORD_PUBLIC_KEY")

	cfg.SchoologyKey = os.Getenv("SCHOOLOGY_KEY")
	cfg.SchoologySecret = os.Getenv("SCHOOLOGY_SECRET")
	cfg.SchoologyDomain = os.Getenv("SCHOOLOGY_DOMAIN")
	if cfg.SchoologyDomain == "" {
		cfg.SchoologyDomain = "app.schoology.com"
	}

	cfg.CallbackURL = os.Getenv("OAUTH_CALLBACK_URL")
	cfg.CohortSectionID = os.Getenv("COHORT_SECTION_ID")
	cfg.CohortName = os.Getenv("COHORT_NAME")
	if cfg.CohortName == "" {
		// Rendered into the cohort-gate error the frontend shows verbatim.
		cfg.CohortName = "class of 2027"
	}

	cfg.TokenTTL = 10 * time.Minute
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL (want a positive Go duration): %q", v)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("PRIVILEGED_USER_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.PrivilegedUserIDs = append(cfg.PrivilegedUserIDs, id)
			}
		}
	}
	cfg.MaintainerUserID = os.Getenv("MAINTAINER_USER_ID")

	cfg.ChannelAlternates = map[string]string{}
	if v := os.Getenv("CHANNEL_ALTERNATES"); v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.ChannelAlternates); err != nil {
			return nil, fmt.Errorf("invalid CHANNEL_ALTERNATES (want JSON object of slug to channel id): %w", err)
		}
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":5000"
	}
	cfg.WebOrigin = os.Getenv("WEB_ORIGIN")

	return cfg, nil
}

// IsPrivileged reports whether the user id is on the setup allow-list.
func (c *Config) IsPrivileged(userID string) bool {
	for _, id := range c.PrivilegedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidateLinkReady checks the fields required to run the link flow.
func (c *Config) ValidateLinkReady() error {
	if c.DiscordBotToken == "" || c.DiscordAppID == "" || c.DiscordPublicKey == "" {
		return fmt.Errorf("missing discord env: require DISCORD_BOT_TOKEN, DISCORD_APP_ID, DISCORD_PUBLIC_KEY")
	}
	if c.SchoologyKey == "" || c.SchoologySecret == "" {
		return fmt.Errorf("missing schoology env: require SCHOOLOGY_KEY, SCHOOLOGY_SECRET")
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("missing OAUTH_CALLBACK_URL")
	}
	if c.CohortSectionID == "" {
		return fmt.Errorf("missing COHORT_SECTION_ID")
	}
	return nil
}
