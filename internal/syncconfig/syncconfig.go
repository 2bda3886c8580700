// Package syncconfig reads the per-user sync settings and credentials kept
// under ~/.config/pratica, with environment overrides.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AutoSyncConfig holds auto-sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	OnStart  *bool  `json:"on_start,omitempty"` // nil = default true
	Debounce string `json:"debounce,omitempty"` // duration string, default "5s"
	Interval string `json:"interval,omitempty"` // duration string, default "60s"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL  string         `json:"url"`
	Auto AutoSyncConfig `json:"auto"`
}

// Config is the global config stored at ~/.config/pratica/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/pratica/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
}

const (
	defaultServerURL = "http://localhost:8080"
	defaultDebounce  = 5 * time.Second
	defaultInterval  = 60 * time.Second
)

// ConfigDir returns ~/.config/pratica, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "pratica")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

func readJSON(name string, v any) (bool, error) {
	dir, err := ConfigDir()
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

func writeJSON(name string, v any, perm os.FileMode) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, perm)
}

// LoadConfig reads the global config. A missing file yields an empty config.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := readJSON("config.json", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config.
func SaveConfig(cfg *Config) error {
	return writeJSON("config.json", cfg, 0644)
}

// LoadAuth reads stored credentials. Returns nil, nil when nobody has logged in.
func LoadAuth() (*AuthCredentials, error) {
	var creds AuthCredentials
	ok, err := readJSON("auth.json", &creds)
	if err != nil || !ok {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes credentials with 0600 perms.
func SaveAuth(creds *AuthCredentials) error {
	return writeJSON("auth.json", creds, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// lookup is one place a setting can come from; it returns "" when unset.
type lookup func() string

func env(key string) lookup {
	return func() string { return strings.TrimSpace(os.Getenv(key)) }
}

func fromAuth(field func(*AuthCredentials) string) lookup {
	return func() string {
		if creds, err := LoadAuth(); err == nil && creds != nil {
			return field(creds)
		}
		return ""
	}
}

func fromConfig(field func(*Config) string) lookup {
	return func() string {
		if cfg, err := LoadConfig(); err == nil {
			return field(cfg)
		}
		return ""
	}
}

// resolve returns the first non-empty source.
func resolve(sources ...lookup) string {
	for _, src := range sources {
		if v := src(); v != "" {
			return v
		}
	}
	return ""
}

// GetServerURL: PRATICA_SYNC_URL, then auth.json, then config.json, then
// the local default.
func GetServerURL() string {
	if v := resolve(
		env("PRATICA_SYNC_URL"),
		fromAuth(func(c *AuthCredentials) string { return c.ServerURL }),
		fromConfig(func(c *Config) string { return c.Sync.URL }),
	); v != "" {
		return v
	}
	return defaultServerURL
}

// GetAPIKey: PRATICA_AUTH_KEY, then auth.json.
func GetAPIKey() string {
	return resolve(env("PRATICA_AUTH_KEY"), fromAuth(func(c *AuthCredentials) string { return c.APIKey }))
}

// GetUserID returns the signed-in user: PRATICA_USER_ID, then auth.json.
// Without an API key nobody is signed in.
func GetUserID() string {
	if GetAPIKey() == "" {
		return ""
	}
	return resolve(env("PRATICA_USER_ID"), fromAuth(func(c *AuthCredentials) string { return c.UserID }))
}

// IsAuthenticated reports whether both an API key and a user are known.
func IsAuthenticated() bool {
	return GetUserID() != ""
}

// GetDeviceID returns the device ID from auth.json, generating one if needed.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	return uuid.NewString(), nil
}

func parseBool(v string) *bool {
	var b bool
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		b = true
	case "0", "false", "no", "off":
	default:
		return nil
	}
	return &b
}

func positiveDuration(v string) (time.Duration, bool) {
	d, err := time.ParseDuration(v)
	return d, err == nil && d > 0
}

// durationSetting takes the first source that parses to a positive duration.
func durationSetting(def time.Duration, sources ...lookup) time.Duration {
	for _, src := range sources {
		if d, ok := positiveDuration(src()); ok {
			return d
		}
	}
	return def
}

// GetAutoSyncEnabled: PRATICA_SYNC_AUTO, then sync.auto.enabled, default on.
func GetAutoSyncEnabled() bool {
	if v := parseBool(os.Getenv("PRATICA_SYNC_AUTO")); v != nil {
		return *v
	}
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncOnStart reports whether long-running commands sync as they start.
func GetAutoSyncOnStart() bool {
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.Auto.OnStart != nil {
		return *cfg.Sync.Auto.OnStart
	}
	return true
}

// GetAutoSyncDebounce is the quiet period between a change and its sync.
func GetAutoSyncDebounce() time.Duration {
	return durationSetting(defaultDebounce,
		env("PRATICA_SYNC_AUTO_DEBOUNCE"),
		fromConfig(func(c *Config) string { return c.Sync.Auto.Debounce }))
}

// GetAutoSyncInterval is the period of full syncs while auto-sync runs.
func GetAutoSyncInterval() time.Duration {
	return durationSetting(defaultInterval,
		env("PRATICA_SYNC_AUTO_INTERVAL"),
		fromConfig(func(c *Config) string { return c.Sync.Auto.Interval }))
}
