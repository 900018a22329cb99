package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.Backend != "couchdb" {
		t.Fatalf("expected couchdb default backend, got %q", cfg.Backend)
	}
	if cfg.BackendURL != "http://localhost:5984" {
		t.Fatalf("unexpected backend url: %q", cfg.BackendURL)
	}
	if cfg.Database != "notes" {
		t.Fatalf("unexpected database: %q", cfg.Database)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("NOTES_STORAGE_BACKEND", "mongodb")
	t.Setenv("NOTES_STORAGE_URL", "mongodb://localhost:27017")
	t.Setenv("NOTES_STORAGE_DATABASE", "scratch")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != "mongodb" {
		t.Fatalf("expected env backend override, got %q", cfg.Backend)
	}
	if cfg.BackendURL != "mongodb://localhost:27017" {
		t.Fatalf("expected env url override, got %q", cfg.BackendURL)
	}
	if cfg.Database != "scratch" {
		t.Fatalf("expected env database override, got %q", cfg.Database)
	}
}

func TestLoadRejectsBlankBackendURL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("storage.url", "   ")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for blank storage url")
	}
}

func TestLoadRejectsBlankDatabase(t *testing.T) {
	configViper := NewViper()
	configViper.Set("storage.database", "")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for blank database")
	}
}
