package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration, loaded from a YAML
// file with the Discord token taken from the environment
type Config struct {
	// DataDir holds the per-guild event files and the attendance database
	DataDir string `yaml:"data_dir"`

	// SweepCron schedules the defensive lifecycle sweep
	SweepCron string `yaml:"sweep_cron"`

	// CommandPrefix starts every operator command message
	CommandPrefix string `yaml:"command_prefix"`

	// PromptTimeoutSeconds bounds each step of the interactive creation flow
	PromptTimeoutSeconds int `yaml:"prompt_timeout_seconds"`

	// BypassRoles maps guild id to platform roles exempt from signup
	// capacity and restriction checks
	BypassRoles map[int64][]int64 `yaml:"bypass_roles"`

	// AuditWebhookURL, if set, receives one JSON row per join/leave
	AuditWebhookURL string `yaml:"audit_webhook_url"`

	// AttendanceDB locates the local attendance history database,
	// defaulting to attendance.db under DataDir
	AttendanceDB string `yaml:"attendance_db"`

	// DiscordToken comes from the environment, never from the file
	DiscordToken string `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:              "data",
		SweepCron:            "*/30 * * * *",
		CommandPrefix:        "muster",
		PromptTimeoutSeconds: 120,
		BypassRoles:          map[int64][]int64{},
		AttendanceDB:         filepath.Join("data", "attendance.db"),
	}
}

// Normalize fills in missing values so partially-filled configs behave
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.SweepCron == "" {
		c.SweepCron = "*/30 * * * *"
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = "muster"
	}
	if c.PromptTimeoutSeconds <= 0 {
		c.PromptTimeoutSeconds = 120
	}
	if c.BypassRoles == nil {
		c.BypassRoles = map[int64][]int64{}
	}
	if c.AttendanceDB == "" {
		c.AttendanceDB = filepath.Join(c.DataDir, "attendance.db")
	}
}

// Load reads the YAML file at path, writing a default file on first run,
// then overlays environment values (a .env file is honored when present)
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config %s: %w", path, err)
		}
		cfg.Normalize()
	}

	// .env file is optional in production
	_ = godotenv.Load()
	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")

	return cfg, nil
}

// Save writes the configuration atomically via a temp file and rename
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".muster-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
