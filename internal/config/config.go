// Package config provides configuration loading for the medstock CLI and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Pharmacy identifies the installation in reports and notifications.
	Pharmacy PharmacyConfig `mapstructure:"pharmacy" yaml:"pharmacy"`

	// Endpoint is the server URL used by CLI commands that talk to a
	// running medstockd.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Auth configuration
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Server configuration (for medstockd)
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Alerts configuration
	Alerts AlertsConfig `mapstructure:"alerts" yaml:"alerts"`

	// SMTP configuration for alert notifications
	SMTP SMTPConfig `mapstructure:"smtp" yaml:"smtp"`

	// Backup configuration
	Backup BackupConfig `mapstructure:"backup" yaml:"backup"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// PharmacyConfig identifies the pharmacy.
type PharmacyConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Token is the CLI's own token for talking to the server.
	Token string `mapstructure:"token" yaml:"token"`

	// Users maps API tokens to named users for the server.
	Users []UserToken `mapstructure:"users" yaml:"users"`
}

// UserToken maps one static API token to a user.
type UserToken struct {
	Token string   `mapstructure:"token" yaml:"token"`
	Name  string   `mapstructure:"name" yaml:"name"`
	Roles []string `mapstructure:"roles" yaml:"roles"`
}

// DatabaseConfig holds database configuration. Driver selects between the
// embedded SQLite store (default) and PostgreSQL.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Path     string `mapstructure:"path" yaml:"path"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Name     string `mapstructure:"name" yaml:"name"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN returns the database/sql connection string for the configured driver.
func (d *DatabaseConfig) DSN() (driver, dsn string, err error) {
	switch d.Driver {
	case "", "sqlite":
		return "sqlite", d.Path, nil
	case "postgres":
		return "postgres", fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", d.Driver)
	}
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  string `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout" yaml:"writeTimeout"`
}

// AlertsConfig holds alert evaluation configuration.
type AlertsConfig struct {
	// ExpiryWindowDays is the near-expiry horizon.
	ExpiryWindowDays int `mapstructure:"expiry_window_days" yaml:"expiry_window_days"`

	// RetentionDays is how long acknowledged alerts are kept.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`

	// Schedule is a cron expression for the in-server alert checker.
	// Empty disables scheduled checks (run 'medstock alerts check' from
	// cron instead).
	Schedule string `mapstructure:"schedule" yaml:"schedule"`

	// Email enables the notification digest for critical alerts.
	Email bool `mapstructure:"email" yaml:"email"`
}

// SMTPConfig holds mail settings for alert notifications.
type SMTPConfig struct {
	Host       string   `mapstructure:"host" yaml:"host"`
	Port       int      `mapstructure:"port" yaml:"port"`
	User       string   `mapstructure:"user" yaml:"user"`
	Password   string   `mapstructure:"password" yaml:"password"`
	From       string   `mapstructure:"from" yaml:"from"`
	Recipients []string `mapstructure:"recipients" yaml:"recipients"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Keep is how many compressed backups to retain.
	Keep int `mapstructure:"keep" yaml:"keep"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Pharmacy: PharmacyConfig{
			Name: "Pharmacy Inventory",
		},
		Endpoint: "http://localhost:8080",
		Auth: AuthConfig{
			Token: "",
			Users: nil,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "medstock.db",
			Host:    "localhost",
			Port:    5432,
			User:    "medstock",
			Name:    "medstock",
			SSLMode: "disable",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
		Alerts: AlertsConfig{
			ExpiryWindowDays: 30,
			RetentionDays:    30,
			Schedule:         "0 6 * * *",
			Email:            false,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Backup: BackupConfig{
			Dir:  "backups",
			Keep: 14,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".medstock"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("MEDSTOCK")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional. Viper only reports
		// ConfigFileNotFoundError in search mode; an explicit --config
		// path that does not exist yet (config init) surfaces as a
		// plain not-exist error.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pharmacy.name", "Pharmacy Inventory")
	v.SetDefault("endpoint", "http://localhost:8080")
	v.SetDefault("auth.token", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "medstock.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "medstock")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "medstock")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("alerts.expiry_window_days", 30)
	v.SetDefault("alerts.retention_days", 30)
	v.SetDefault("alerts.schedule", "0 6 * * *")
	v.SetDefault("alerts.email", false)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.keep", 14)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
