package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envClientID     = "ADOBE_CLIENT_ID"
	envClientSecret = "ADOBE_CLIENT_SECRET"
	envDatabase     = "FORMS_DB"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	PDFServices PDFServicesConfig         `json:"pdf_services"`
	Apps        map[string]AppConfig      `json:"apps"`
	Mail        MailConfig                `json:"mail"`
	Sheet       SheetConfig               `json:"sheet"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// Database names the entry of Databases to open; defaults to sqlite3.
	Database string `json:"database"`
	// FieldStore selects the field persistence backend: "sql", "redis" or "memory".
	FieldStore            string `json:"field_store"`
	ArtifactDir           string `json:"artifact_dir"`
	ArtifactTTL           int    `json:"artifact_ttl"`            // minutes
	ArtifactCleanInterval int    `json:"artifact_clean_interval"` // minutes
	SessionTTL            int    `json:"session_ttl"`             // hours
	ConvertTimeout        int    `json:"convert_timeout"`         // seconds
	MaxBodyBytes          int64  `json:"max_body_bytes"`
	MinWorkers            int    `json:"min_workers"`
	MaxWorkers            int    `json:"max_workers"`
	QueueSize             int    `json:"queue_size"`
	WorkerIdleTimeout     int    `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PDFServicesConfig holds the conversion-service credentials. The secrets
// normally arrive through the environment rather than the file.
type PDFServicesConfig struct {
	BaseURL      string `json:"base_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	PollInterval int    `json:"poll_interval_ms"`
}

type AppConfig struct {
	TemplatePath string `json:"template_path"`
	YearSuffix   string `json:"year_suffix"`
}

type MailConfig struct {
	ComposeURL string              `json:"compose_url"`
	CC         []string            `json:"cc"`
	Groups     map[string][]string `json:"groups"`
	Scenarios  map[string][]string `json:"scenarios"`
}

type SheetConfig struct {
	ID  string `json:"id"`
	GID string `json:"gid"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(filepath.Dir(absPath))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv(envClientID)); v != "" {
		c.PDFServices.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(envClientSecret)); v != "" {
		c.PDFServices.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envDatabase)); v != "" {
		c.BasicConfig.Database = v
	}
	if c.BasicConfig.Database == "" {
		c.BasicConfig.Database = "sqlite3"
	}
}

func (c *Config) resolvePaths(base string) {
	if c.BasicConfig.ArtifactDir != "" && !filepath.IsAbs(c.BasicConfig.ArtifactDir) {
		c.BasicConfig.ArtifactDir = filepath.Join(base, c.BasicConfig.ArtifactDir)
	}
	for name, db := range c.Databases {
		if (name == "sqlite" || name == "sqlite3") && db.DSN != "" && db.DSN != ":memory:" &&
			!strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(base, db.DSN)
			c.Databases[name] = db
		}
	}
	for name, app := range c.Apps {
		if app.TemplatePath != "" && !filepath.IsAbs(app.TemplatePath) {
			app.TemplatePath = filepath.Join(base, app.TemplatePath)
			c.Apps[name] = app
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.BasicConfig.FieldStore) {
	case "", "sql", "redis", "memory":
	default:
		return fmt.Errorf("unsupported field_store %q", c.BasicConfig.FieldStore)
	}
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}
	if _, ok := c.Databases[c.BasicConfig.Database]; !ok {
		return fmt.Errorf("database %q is not configured", c.BasicConfig.Database)
	}
	return nil
}

// App returns the per-app settings, zero value when the app is not configured.
func (c *Config) App(id string) AppConfig {
	if c == nil || c.Apps == nil {
		return AppConfig{}
	}
	return c.Apps[id]
}
