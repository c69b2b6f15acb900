package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Cache.DatabasePath != ":memory:" {
			t.Errorf("expected cache database path :memory:, got %s", config.Cache.DatabasePath)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.MusicBrainz.Interval() != time.Second {
			t.Errorf("expected musicbrainz interval 1s, got %v", config.MusicBrainz.Interval())
		}

		if config.MusicBrainz.CacheTTL() != 5*time.Minute {
			t.Errorf("expected cache ttl 5m, got %v", config.MusicBrainz.CacheTTL())
		}

		if config.Spotify.MaxAttempts != 3 || config.Spotify.MaxBackoff() != 30*time.Second {
			t.Errorf("expected 3 attempts capped at 30s, got %d / %v", config.Spotify.MaxAttempts, config.Spotify.MaxBackoff())
		}

		if config.Spotify.BatchSize != 100 {
			t.Errorf("expected batch size 100, got %d", config.Spotify.BatchSize)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.MusicBrainz.UserAgent != defaultConfig.MusicBrainz.UserAgent {
			t.Errorf("created config user agent doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[musicbrainz]
user_agent = "test-agent/1.0"
interval_ms = 20

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.MusicBrainz.UserAgent != "test-agent/1.0" {
			t.Errorf("expected user agent test-agent/1.0, got %s", config.MusicBrainz.UserAgent)
		}

		if config.MusicBrainz.Interval() != 20*time.Millisecond {
			t.Errorf("expected interval 20ms, got %v", config.MusicBrainz.Interval())
		}

		if config.MusicBrainz.PageSize != 100 {
			t.Errorf("expected unset page size to keep default 100, got %d", config.MusicBrainz.PageSize)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("SaveConfig Round Trips Token", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()

		expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		if err := config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "abc", RefreshToken: "def", Expiry: expiry}); err != nil {
			t.Fatalf("failed to update token: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token to be restored")
		}
		if token.AccessToken != "abc" || token.RefreshToken != "def" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
	})

	t.Run("Update Rejects Empty Token", func(t *testing.T) {
		var c SpotifyConfig
		if err := c.Update(nil); err == nil {
			t.Error("expected error for nil token")
		}
		if c.Token() != nil {
			t.Error("expected nil token when none stored")
		}
	})
}
