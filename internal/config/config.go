// Package config loads and validates the shelfsync configuration file.
// All ambient state (credentials, endpoints, collection list, recipient
// addresses) lives here; components receive an explicit config object at
// construction and never read the process environment themselves.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"shelfsync/internal/retry"
)

// Config is the application configuration.
type Config struct {
	Collections []Collection   `yaml:"collections"`
	Backends    BackendsConfig `yaml:"backends"`
	Storage     StorageConfig  `yaml:"storage"`
	Mail        MailConfig     `yaml:"mail"`
	Output      OutputConfig   `yaml:"output"`
	Retry       RetryConfig    `yaml:"retry,omitempty"`
	Schedules   ScheduleConfig `yaml:"schedules,omitempty"`
	Metrics     MetricsConfig  `yaml:"metrics,omitempty"`
}

// Collection names one collection on one backend. Exactly one of ID or Tag
// must be set: ID for backends indexed by opaque collection key (zotero),
// Tag for backends indexed by label (calibre).
type Collection struct {
	Name        string `yaml:"name"`
	Backend     string `yaml:"backend"`
	ID          string `yaml:"id,omitempty"`
	Tag         string `yaml:"tag,omitempty"`
	Description string `yaml:"description,omitempty"` // optional Markdown, rendered into the listing header
}

// BackendsConfig holds per-backend connection settings.
type BackendsConfig struct {
	Calibre *CalibreConfig `yaml:"calibre,omitempty"`
	Zotero  *ZoteroConfig  `yaml:"zotero,omitempty"`
}

// CalibreConfig points at a Calibre library directory containing metadata.db.
type CalibreConfig struct {
	LibraryPath string `yaml:"library_path"`
}

// ZoteroConfig holds Zotero web API access settings.
type ZoteroConfig struct {
	LibraryID   string `yaml:"library_id"`
	LibraryType string `yaml:"library_type,omitempty"` // user|group, defaults to user
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"` // override for tests
}

// StorageConfig configures the shared artifact storage backend. At most
// one backend may be configured; with none, listings render without links.
type StorageConfig struct {
	GDrive *GDriveConfig `yaml:"gdrive,omitempty"`
	Local  *LocalConfig  `yaml:"local,omitempty"`
}

// LocalConfig points at a locally mounted directory that mirrors the
// shared artifact store, with an optional base URL for link construction.
type LocalConfig struct {
	Path    string `yaml:"path"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// GDriveConfig holds Google Drive service-account settings. Credentials is
// either a path to a service account JSON key file or the JSON itself.
type GDriveConfig struct {
	Credentials string `yaml:"credentials"`
	Folder      string `yaml:"folder,omitempty"` // restrict lookups to one folder
}

// MailConfig configures the SMTP notifier.
type MailConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port,omitempty"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from,omitempty"`
	Recipients    []string `yaml:"recipients"`
	SubjectPrefix string   `yaml:"subject_prefix,omitempty"`
}

// OutputConfig configures the output repository the gatekeeper commits into.
type OutputConfig struct {
	Repository string    `yaml:"repository"` // path to the working tree
	Notice     string    `yaml:"notice,omitempty"`
	SentLog    string    `yaml:"sent_log,omitempty"` // path inside the repository
	Push       bool      `yaml:"push,omitempty"`
	Remote     string    `yaml:"remote,omitempty"`
	Committer  Committer `yaml:"committer"`
	Auth       *GitAuth  `yaml:"auth,omitempty"`
}

// Committer is the commit identity. Signing, if any, is the environment's
// business (git config, signing agents); the gatekeeper only sets the identity.
type Committer struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// GitAuth configures push authentication.
type GitAuth struct {
	Type     string `yaml:"type"` // "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// RetryConfig is the raw form of the retry policy.
type RetryConfig struct {
	Mode       string        `yaml:"mode,omitempty"`
	Initial    time.Duration `yaml:"initial,omitempty"`
	Max        time.Duration `yaml:"max,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// Policy converts the raw retry settings into a policy, applying defaults.
func (r RetryConfig) Policy() retry.Policy {
	maxRetries := r.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1 // fall back to default
	}
	return retry.NewPolicy(retry.BackoffMode(r.Mode), r.Initial, r.Max, maxRetries)
}

// ScheduleConfig holds cron expressions for daemon mode.
type ScheduleConfig struct {
	Build  string `yaml:"build,omitempty"`
	Notify string `yaml:"notify,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint in daemon mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

// Load reads the configuration from the given path. Environment variables
// referenced as ${VAR} in the file are expanded; a .env file next to the
// working directory is loaded first so secrets can live outside the YAML.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine; it only exists in dev setups.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.Output.Repository == "" {
		c.Output.Repository = "./site"
	}
	if c.Output.SentLog == "" {
		c.Output.SentLog = "sent.log"
	}
	if c.Output.Remote == "" {
		c.Output.Remote = "origin"
	}
	if c.Backends.Zotero != nil {
		if c.Backends.Zotero.LibraryType == "" {
			c.Backends.Zotero.LibraryType = "user"
		}
		if c.Backends.Zotero.BaseURL == "" {
			c.Backends.Zotero.BaseURL = "https://api.zotero.org"
		}
	}
	if c.Schedules.Build == "" {
		c.Schedules.Build = "0 6 * * *"
	}
	if c.Schedules.Notify == "" {
		c.Schedules.Notify = "0 8 * * 1" // weekly
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9187"
	}
}

// Validate checks the configuration for structural problems. It is called
// by Load; it is exported so tests and the daemon reload path can revalidate.
func (c *Config) Validate() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("no collections configured")
	}
	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collection %d: name is required", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("collection %q: duplicate name", col.Name)
		}
		seen[col.Name] = true
		switch col.Backend {
		case "calibre":
			if c.Backends.Calibre == nil {
				return fmt.Errorf("collection %q: calibre backend is not configured", col.Name)
			}
			if col.Tag == "" {
				return fmt.Errorf("collection %q: calibre collections are selected by tag", col.Name)
			}
		case "zotero":
			if c.Backends.Zotero == nil {
				return fmt.Errorf("collection %q: zotero backend is not configured", col.Name)
			}
			if col.ID == "" {
				return fmt.Errorf("collection %q: zotero collections are selected by id", col.Name)
			}
		default:
			return fmt.Errorf("collection %q: unknown backend %q", col.Name, col.Backend)
		}
		if col.ID != "" && col.Tag != "" {
			return fmt.Errorf("collection %q: id and tag are mutually exclusive", col.Name)
		}
	}
	if c.Backends.Calibre != nil && c.Backends.Calibre.LibraryPath == "" {
		return fmt.Errorf("backends.calibre.library_path is required")
	}
	if c.Backends.Zotero != nil && c.Backends.Zotero.LibraryID == "" {
		return fmt.Errorf("backends.zotero.library_id is required")
	}
	if c.Storage.GDrive != nil && c.Storage.Local != nil {
		return fmt.Errorf("storage.gdrive and storage.local are mutually exclusive")
	}
	if c.Storage.GDrive != nil && c.Storage.GDrive.Credentials == "" {
		return fmt.Errorf("storage.gdrive.credentials is required")
	}
	if c.Storage.Local != nil && c.Storage.Local.Path == "" {
		return fmt.Errorf("storage.local.path is required")
	}
	if c.Output.Committer.Name == "" || c.Output.Committer.Email == "" {
		return fmt.Errorf("output.committer name and email are required")
	}
	return nil
}
