package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Race     Race     `yaml:"race"`
	Fetch    Fetch    `yaml:"fetch"`
	Schedule Schedule `yaml:"schedule"`
	Delivery Delivery `yaml:"delivery"`
	News     News     `yaml:"news"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Output   Output   `yaml:"output"`
}

type Race struct {
	Name          string              `yaml:"name"`
	ResultsURL    string              `yaml:"results_url"`
	Timezone      string              `yaml:"timezone"`
	PreRaceStage  int                 `yaml:"pre_race_stage"`
	Team          string              `yaml:"team"`
	TeamLabel     string              `yaml:"team_label"`
	FallbackFile  string              `yaml:"fallback_file"`
	Calendar      []CalendarDay       `yaml:"calendar"`
	JerseyAliases map[string][]string `yaml:"jersey_aliases"`
}

type CalendarDay struct {
	Date  string `yaml:"date"`
	Stage int    `yaml:"stage"`
}

type Fetch struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type Schedule struct {
	Time string `yaml:"time"`
	Cron string `yaml:"cron"`
}

type Delivery struct {
	Channel  string   `yaml:"channel"`
	WhatsApp WhatsApp `yaml:"whatsapp"`
	Email    Email    `yaml:"email"`
}

type WhatsApp struct {
	AccountSIDEnv string `yaml:"account_sid_env"`
	AuthTokenEnv  string `yaml:"auth_token_env"`
	FromEnv       string `yaml:"from_env"`
	ToEnv         string `yaml:"to_env"`
	BaseURL       string `yaml:"base_url"`
}

type Email struct {
	Server      string   `yaml:"server"`
	Port        int      `yaml:"port"`
	Username    string   `yaml:"username"`
	PasswordEnv string   `yaml:"password_env"`
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	Subject     string   `yaml:"subject"`
}

type News struct {
	Feeds       []Feed `yaml:"feeds"`
	MaxAgeHours int    `yaml:"max_age_hours"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

// Delivery channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelLog      = "log"
)

// ConfigDir returns the XDG config directory for girobot.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "girobot")
}

// DataDir returns the XDG data directory for girobot.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "girobot")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/girobot/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'girobot init' to create a default config",
		xdgConfig,
	)
}

// LocalPath returns the override file read alongside path:
// config.yaml -> config.local.yaml.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Load reads and parses a config YAML file, then merges the sibling local
// override file over it when one exists. Override values replace the base
// only where they are non-zero.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	local := LocalPath(path)
	localData, err := os.ReadFile(local)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading local config: %w", err)
	}

	var override Config
	if err := yaml.Unmarshal(localData, &override); err != nil {
		return nil, fmt.Errorf("parsing local config: %w", err)
	}
	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging local config: %w", err)
	}
	slog.Info("merged local config overrides", "local", local)
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Race: Race{
			Timezone:     "Australia/Melbourne",
			PreRaceStage: 1,
			Team:         "Lidl-Trek",
		},
		Fetch:    Fetch{TimeoutSeconds: 20},
		Schedule: Schedule{Time: "08:00"},
		Delivery: Delivery{
			Channel: ChannelWhatsApp,
			WhatsApp: WhatsApp{
				AccountSIDEnv: "TWILIO_ACCOUNT_SID",
				AuthTokenEnv:  "TWILIO_AUTH_TOKEN",
				FromEnv:       "TWILIO_FROM_NUMBER",
				ToEnv:         "TO_NUMBER",
			},
			Email: Email{Port: 587, PasswordEnv: "SMTP_PASSWORD"},
		},
		News:    News{MaxAgeHours: 48},
		Server:  Server{Host: "0.0.0.0", Port: 3000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that everything needed to run a cycle is present. When
// requireSecrets is set the delivery channel's environment variables must
// also be set.
func (c *Config) Validate(requireSecrets bool) error {
	var errs []error

	if c.Race.ResultsURL == "" {
		errs = append(errs, errors.New("race.results_url is required"))
	}
	if len(c.Race.Calendar) == 0 {
		errs = append(errs, errors.New("race.calendar is empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("fetch.timeout_seconds must be positive"))
	}
	if c.Schedule.Cron == "" && c.Schedule.Time == "" {
		errs = append(errs, errors.New("schedule.time or schedule.cron is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}

	switch c.Delivery.Channel {
	case ChannelWhatsApp:
		if requireSecrets {
			for _, name := range []string{
				c.Delivery.WhatsApp.AccountSIDEnv,
				c.Delivery.WhatsApp.AuthTokenEnv,
				c.Delivery.WhatsApp.FromEnv,
				c.Delivery.WhatsApp.ToEnv,
			} {
				if name == "" || os.Getenv(name) == "" {
					errs = append(errs, fmt.Errorf("whatsapp delivery needs environment variable %q", name))
				}
			}
		}
	case ChannelEmail:
		e := c.Delivery.Email
		if e.Server == "" || e.From == "" || len(e.To) == 0 {
			errs = append(errs, errors.New("email delivery needs delivery.email.server, from and to"))
		}
		if requireSecrets && e.Username != "" && os.Getenv(e.PasswordEnv) == "" {
			errs = append(errs, fmt.Errorf("email delivery needs environment variable %q", e.PasswordEnv))
		}
	case ChannelLog:
	default:
		errs = append(errs, fmt.Errorf("unknown delivery.channel %q", c.Delivery.Channel))
	}

	return errors.Join(errs...)
}

// Location loads the race time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Race.Timezone)
	if err != nil {
		return nil, fmt.Errorf("race.timezone %q: %w", c.Race.Timezone, err)
	}
	return loc, nil
}

// FetchTimeout returns the page fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
