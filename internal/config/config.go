/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variables read by Load, e.g. CHATDB_DATABASE_HOST.
const EnvPrefix = "CHATDB"

// Config holds all configuration for the application
type Config struct {
	Database     DatabaseConfig `mapstructure:"database"`
	Sampler      SamplerConfig  `mapstructure:"sampler"`
	Logging      LoggingConfig  `mapstructure:"logging"`
	Server       ServerConfig   `mapstructure:"server"`
	GeminiAPIKey string         `mapstructure:"gemini_api_key"`
	Model        string         `mapstructure:"model"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"username"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"name"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"cloudsql_use_private_ip"`
	CreateIfMissing                bool   `mapstructure:"create_if_missing"`
}

// SamplerConfig controls query sampling.
type SamplerConfig struct {
	DefaultCount int   `mapstructure:"default_count"`
	MaxAttempts  int   `mapstructure:"max_attempts"`
	Seed         int64 `mapstructure:"seed"` // 0 means seed from the clock
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // console, json
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var SupportedDialects = []string{"mysql", "cloudsqlmysql"}

var globalConfig *Config

// GetConfig returns the configuration set by the command layer, or the defaults if none was set.
func GetConfig() *Config {
	if globalConfig != nil {
		return globalConfig
	}
	return Default()
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "mysql",
			Host:    "localhost",
			Port:    3306,
		},
		Sampler: SamplerConfig{
			DefaultCount: 5,
			MaxAttempts:  50,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Model: "gemini-1.5-flash-latest",
	}
}

// SetDefaults registers the built-in configuration as viper defaults.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.cloudsql_instance_connection_name", "")
	v.SetDefault("database.cloudsql_use_private_ip", false)
	v.SetDefault("database.create_if_missing", false)
	v.SetDefault("sampler.default_count", d.Sampler.DefaultCount)
	v.SetDefault("sampler.max_attempts", d.Sampler.MaxAttempts)
	v.SetDefault("sampler.seed", d.Sampler.Seed)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("model", d.Model)
}

// Load reads configuration from defaults, an optional config file, the environment and any
// flags already bound to v, in increasing order of precedence.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// GEMINI_API_KEY is honoured without the prefix.
	if err := v.BindEnv("gemini_api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind gemini api key env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Database.Dialect = strings.ToLower(strings.TrimSpace(cfg.Database.Dialect))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return cfg, nil
}

// IsCloudSQL reports whether the dialect connects through the Cloud SQL connector.
func (c DatabaseConfig) IsCloudSQL() bool {
	return strings.HasPrefix(c.Dialect, "cloudsql")
}

// Validate checks that the connection settings are complete for the configured dialect.
func (c DatabaseConfig) Validate() error {
	supported := false
	for _, d := range SupportedDialects {
		if c.Dialect == d {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported dialect: %s (only %s are supported)", c.Dialect, strings.Join(SupportedDialects, ", "))
	}
	if c.IsCloudSQL() {
		if c.CloudSQLInstanceConnectionName == "" {
			return fmt.Errorf("cloudsql instance connection name is required for dialect %s", c.Dialect)
		}
	} else {
		if c.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Port)
		}
	}
	if c.User == "" {
		return fmt.Errorf("database username is required")
	}
	return nil
}
