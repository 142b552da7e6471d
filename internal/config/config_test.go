package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoad_Defaults checks that loading with no config file produces the
// documented defaults.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "medstock.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Alerts.ExpiryWindowDays != 30 {
		t.Errorf("alerts.expiry_window_days = %d, want 30", cfg.Alerts.ExpiryWindowDays)
	}
	if cfg.Alerts.Schedule != "0 6 * * *" {
		t.Errorf("alerts.schedule = %q", cfg.Alerts.Schedule)
	}
	if cfg.Backup.Keep != 14 {
		t.Errorf("backup.keep = %d, want 14", cfg.Backup.Keep)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

// TestLoad_MissingExplicitFile checks that pointing --config at a path
// that does not exist yet falls back to defaults instead of failing; config
// init relies on this to bootstrap a fresh path.
func TestLoad_MissingExplicitFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "not-written-yet.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

// TestLoad_File checks loading an explicit YAML config file.
func TestLoad_File(t *testing.T) {
	content := `
pharmacy:
  name: Test Pharmacy
database:
  driver: postgres
  host: db.internal
  port: 5433
  user: pharma
  password: secret
  name: inventory
auth:
  token: cli-token
  users:
    - token: t1
      name: alice
      roles: [admin]
alerts:
  expiry_window_days: 14
  schedule: ""
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pharmacy.Name != "Test Pharmacy" {
		t.Errorf("pharmacy.name = %q", cfg.Pharmacy.Name)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Alerts.ExpiryWindowDays != 14 {
		t.Errorf("alerts.expiry_window_days = %d, want 14", cfg.Alerts.ExpiryWindowDays)
	}
	if cfg.Alerts.Schedule != "" {
		t.Errorf("alerts.schedule = %q, want empty", cfg.Alerts.Schedule)
	}
	if len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Name != "alice" {
		t.Errorf("auth.users = %+v", cfg.Auth.Users)
	}
	// File values override defaults; untouched keys keep theirs.
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want default", cfg.Server.Addr)
	}
}

// TestDatabaseConfig_DSN checks driver selection and connection strings.
func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		d := DatabaseConfig{Driver: "sqlite", Path: "/var/lib/medstock.db"}
		driver, dsn, err := d.DSN()
		if err != nil {
			t.Fatalf("DSN failed: %v", err)
		}
		if driver != "sqlite" || dsn != "/var/lib/medstock.db" {
			t.Errorf("got %q %q", driver, dsn)
		}
	})

	t.Run("empty driver falls back to sqlite", func(t *testing.T) {
		d := DatabaseConfig{Path: "medstock.db"}
		driver, _, err := d.DSN()
		if err != nil {
			t.Fatalf("DSN failed: %v", err)
		}
		if driver != "sqlite" {
			t.Errorf("driver = %q, want sqlite", driver)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		d := DatabaseConfig{
			Driver: "postgres", Host: "db", Port: 5432,
			User: "u", Password: "p", Name: "medstock", SSLMode: "disable",
		}
		driver, dsn, err := d.DSN()
		if err != nil {
			t.Fatalf("DSN failed: %v", err)
		}
		if driver != "postgres" {
			t.Errorf("driver = %q", driver)
		}
		for _, part := range []string{"host=db", "port=5432", "dbname=medstock", "sslmode=disable"} {
			if !strings.Contains(dsn, part) {
				t.Errorf("dsn %q missing %q", dsn, part)
			}
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		d := DatabaseConfig{Driver: "oracle"}
		if _, _, err := d.DSN(); err == nil {
			t.Fatal("expected error for unsupported driver")
		}
	})
}

// TestDefaultConfig checks the config used by 'config init'.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Endpoint != "http://localhost:8080" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("smtp.port = %d, want 587", cfg.SMTP.Port)
	}
}
