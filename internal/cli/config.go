package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pthm/dbupdater/pkg/updater"
)

const (
	maxWalkDepth = 25
)

// Config represents the dbupdater configuration from dbupdater.yaml.
type Config struct {
	// SourceDir is the project data root that "$/" paths resolve against.
	SourceDir  string   `mapstructure:"source_dir" json:"source_dir"`
	ModulesDir string   `mapstructure:"modules_dir" json:"modules_dir"`
	Modules    []string `mapstructure:"modules" json:"modules"`

	Updates   UpdatesConfig   `mapstructure:"updates" json:"updates"`
	Databases DatabasesConfig `mapstructure:"databases" json:"databases"`
}

// UpdatesConfig holds the update policy switches.
type UpdatesConfig struct {
	// EnableDatabases is a bit mask of the databases to update.
	EnableDatabases      int  `mapstructure:"enable_databases" json:"enable_databases"`
	AutoSetup            bool `mapstructure:"auto_setup" json:"auto_setup"`
	Redundancy           bool `mapstructure:"redundancy" json:"redundancy"`
	ArchivedRedundancy   bool `mapstructure:"archived_redundancy" json:"archived_redundancy"`
	AllowRehash          bool `mapstructure:"allow_rehash" json:"allow_rehash"`
	CleanDeadRefMaxCount int  `mapstructure:"clean_dead_ref_max_count" json:"clean_dead_ref_max_count"`
}

// DatabasesConfig holds one connection per logical database.
type DatabasesConfig struct {
	Auth       DatabaseConfig `mapstructure:"auth" json:"auth"`
	Characters DatabaseConfig `mapstructure:"characters" json:"characters"`
	World      DatabaseConfig `mapstructure:"world" json:"world"`
	Hotfixes   DatabaseConfig `mapstructure:"hotfixes" json:"hotfixes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("DBUPDATER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_dir", ".")
	v.SetDefault("modules_dir", "modules")
	v.SetDefault("modules", []string{})

	v.SetDefault("updates.enable_databases", 15)
	v.SetDefault("updates.auto_setup", true)
	v.SetDefault("updates.redundancy", true)
	v.SetDefault("updates.archived_redundancy", false)
	v.SetDefault("updates.allow_rehash", true)
	v.SetDefault("updates.clean_dead_ref_max_count", 3)

	// Every key needs a default so AutomaticEnv can override it.
	for _, db := range updater.AllDatabases {
		prefix := "databases." + db.Name() + "."
		v.SetDefault(prefix+"url", "")
		v.SetDefault(prefix+"host", "")
		v.SetDefault(prefix+"port", 5432)
		v.SetDefault(prefix+"name", "")
		v.SetDefault(prefix+"user", "")
		v.SetDefault(prefix+"password", "")
		// lib/pq has no "prefer" mode.
		v.SetDefault(prefix+"sslmode", "disable")
	}
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for dbupdater.yaml or dbupdater.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"dbupdater.yaml", "dbupdater.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// Database returns the connection settings for db.
func (c *Config) Database(db updater.Database) DatabaseConfig {
	switch db {
	case updater.DatabaseAuth:
		return c.Databases.Auth
	case updater.DatabaseCharacters:
		return c.Databases.Characters
	case updater.DatabaseWorld:
		return c.Databases.World
	case updater.DatabaseHotfixes:
		return c.Databases.Hotfixes
	}
	return DatabaseConfig{}
}

// EnabledDatabases returns the databases selected by updates.enable_databases.
func (c *Config) EnabledDatabases() []updater.Database {
	var out []updater.Database
	for _, db := range updater.AllDatabases {
		if db.Enabled(c.Updates.EnableDatabases) {
			out = append(out, db)
		}
	}
	return out
}

// Policy converts the update switches into an updater.Policy.
func (c *Config) Policy() updater.Policy {
	return updater.Policy{
		Redundancy:           c.Updates.Redundancy,
		ArchivedRedundancy:   c.Updates.ArchivedRedundancy,
		AllowRehash:          c.Updates.AllowRehash,
		CleanDeadRefMaxCount: c.Updates.CleanDeadRefMaxCount,
	}
}

// Options returns updater options for db.
func (c *Config) Options(db updater.Database) updater.Options {
	return updater.Options{
		Database:   db,
		SourceDir:  c.SourceDir,
		ModulesDir: c.ModulesDir,
		Modules:    c.Modules,
		Policy:     c.Policy(),
	}
}

// DSN returns the database connection string.
// If url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (d DatabaseConfig) DSN() (string, error) {
	u, err := d.parse()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// MaintenanceDSN returns a DSN for the same server pointed at the postgres
// maintenance database, used to create a missing database.
func (d DatabaseConfig) MaintenanceDSN() (string, error) {
	u, err := d.parse()
	if err != nil {
		return "", err
	}
	u.Path = "/postgres"
	return u.String(), nil
}

// DatabaseName returns the database name the DSN points at.
func (d DatabaseConfig) DatabaseName() (string, error) {
	u, err := d.parse()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

func (d DatabaseConfig) parse() (*url.URL, error) {
	if d.URL != "" {
		u, err := url.Parse(d.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing database url: %w", err)
		}
		return u, nil
	}

	if d.Host == "" {
		return nil, fmt.Errorf("host is required when url is not set")
	}
	if d.Name == "" {
		return nil, fmt.Errorf("name is required when url is not set")
	}
	if d.User == "" {
		return nil, fmt.Errorf("user is required when url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}

	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}

	if d.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", d.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u, nil
}

// Redacted returns a copy of c with passwords removed, for display.
func (c *Config) Redacted() Config {
	out := *c
	redact := func(d *DatabaseConfig) {
		if d.Password != "" {
			d.Password = "********"
		}
		if d.URL != "" {
			if u, err := url.Parse(d.URL); err == nil {
				d.URL = u.Redacted()
			}
		}
	}
	redact(&out.Databases.Auth)
	redact(&out.Databases.Characters)
	redact(&out.Databases.World)
	redact(&out.Databases.Hotfixes)
	return out
}
