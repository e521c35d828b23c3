// Package config loads the connection settings for both stores.
//
// Values are resolved from, in increasing priority: built-in defaults, an
// optional YAML file, FOOTSTATS_* environment variables (a .env file in the
// working directory is loaded into the environment first) and command line
// flags bound to the same keys.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option keys, shared by the config file, environment and flags.
const (
	KeySourcePath     = "source_path"
	KeyTargetHost     = "target_host"
	KeyTargetPort     = "target_port"
	KeyTargetDB       = "target_db"
	KeyTargetUser     = "target_user"
	KeyTargetPassword = "target_password"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

// EnvPrefix namespaces environment variables, e.g. FOOTSTATS_TARGET_HOST.
const EnvPrefix = "FOOTSTATS"

// Config holds the settings passed to every component at construction.
type Config struct {
	SourcePath     string `mapstructure:"source_path"`
	TargetHost     string `mapstructure:"target_host"`
	TargetPort     int    `mapstructure:"target_port"`
	TargetDB       string `mapstructure:"target_db"`
	TargetUser     string `mapstructure:"target_user"`
	TargetPassword string `mapstructure:"target_password"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	KeySourcePath:     "database.sqlite",
	KeyTargetHost:     "localhost",
	KeyTargetPort:     5432,
	KeyTargetDB:       "footstats",
	KeyTargetUser:     "postgres",
	KeyTargetPassword: "",
	KeyLogLevel:       "info",
	KeyLogFormat:      "text",
}

// Load resolves the configuration. configFile may be empty, in which case
// footstats.yaml is used when present in the working directory. flags may
// be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("footstats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags binds every flag whose name, with dashes as underscores, is a
// known option key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := defaults[key]; !known || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

// Validate checks that every connection parameter is usable.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.SourcePath) == "" {
		problems = append(problems, "source_path is required")
	}
	if strings.TrimSpace(c.TargetHost) == "" {
		problems = append(problems, "target_host is required")
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		problems = append(problems, fmt.Sprintf("target_port %d is out of range", c.TargetPort))
	}
	if strings.TrimSpace(c.TargetDB) == "" {
		problems = append(problems, "target_db is required")
	}
	if strings.TrimSpace(c.TargetUser) == "" {
		problems = append(problems, "target_user is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TargetConnConfig builds the PostgreSQL connection settings. Settings not
// covered by Config, such as sslmode, still come from the standard PG*
// environment variables.
func (c *Config) TargetConnConfig() (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(c.TargetConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	return connConfig, nil
}

// TargetConnString renders the target settings as a keyword/value
// connection string.
func (c *Config) TargetConnString() string {
	pairs := []struct{ key, value string }{
		{"host", c.TargetHost},
		{"port", strconv.Itoa(c.TargetPort)},
		{"dbname", c.TargetDB},
		{"user", c.TargetUser},
		{"password", c.TargetPassword},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteConnValue(p.value))
	}
	return strings.Join(parts, " ")
}

var connValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteConnValue(value string) string {
	return "'" + connValueEscaper.Replace(value) + "'"
}
