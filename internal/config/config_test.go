package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "http" {
		t.Errorf("Expected default mode to be 'http', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.ServerName != "pdf-filler" {
		t.Errorf("Expected default server name to be 'pdf-filler', got '%s'", cfg.ServerName)
	}

	if cfg.PdftkPath != "pdftk" {
		t.Errorf("Expected default pdftk path to be 'pdftk', got '%s'", cfg.PdftkPath)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	if cfg.DownloadTimeout != 30*time.Second {
		t.Errorf("Expected default download timeout to be 30s, got %v", cfg.DownloadTimeout)
	}

	currentDir, _ := os.Getwd()
	if cfg.PDFDirectory != currentDir {
		t.Errorf("Expected default PDF directory to be '%s', got '%s'", currentDir, cfg.PDFDirectory)
	}
}

func validConfig(dir string) *Config {
	cfg := DefaultConfig()
	cfg.PDFDirectory = dir
	return cfg
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid http config", mutate: func(c *Config) {}},
		{name: "valid stdio config", mutate: func(c *Config) { c.Mode = ModeStdio }},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "server" }, wantErr: true},
		{name: "port too low", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "invalid port ignored in stdio mode", mutate: func(c *Config) { c.Mode = ModeStdio; c.Port = 0 }},
		{name: "empty PDF directory", mutate: func(c *Config) { c.PDFDirectory = "" }, wantErr: true},
		{name: "empty pdftk path", mutate: func(c *Config) { c.PdftkPath = "" }, wantErr: true},
		{name: "zero max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: true},
		{name: "zero download timeout", mutate: func(c *Config) { c.DownloadTimeout = 0 }, wantErr: true},
		{name: "storage none", mutate: func(c *Config) { c.StorageBackend = StorageNone }},
		{name: "local storage with root", mutate: func(c *Config) {
			c.StorageBackend = StorageLocal
			c.StorageRoot = filepath.Join(dir, "stored")
		}},
		{name: "local storage without root", mutate: func(c *Config) { c.StorageBackend = StorageLocal }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageBackend = "gcs" }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(dir)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "nested", "forms")

	cfg := validConfig(newDir)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	info, err := os.Stat(newDir)
	if err != nil {
		t.Fatalf("Expected directory to be created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("Expected %s to be a directory", newDir)
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 9000}
	if got := cfg.Address(); got != "localhost:9000" {
		t.Errorf("Expected address 'localhost:9000', got '%s'", got)
	}
}

func TestConfigPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "explicit base url", cfg: Config{StorageBaseURL: "https://files.example.com/"}, want: "https://files.example.com"},
		{name: "host and port", cfg: Config{Host: "127.0.0.1", Port: 8080}, want: "http://127.0.0.1:8080"},
		{name: "wildcard host", cfg: Config{Host: "0.0.0.0", Port: 9000}, want: "http://localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.PublicBaseURL(); got != tt.want {
				t.Errorf("PublicBaseURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthorizationToken = "super-secret"

	str := cfg.String()
	if strings.Contains(str, "super-secret") {
		t.Errorf("String() must not leak the authorization token: %s", str)
	}
	for _, want := range []string{"Mode: http", "Port: 8080", "AuthorizationToken: <redacted>"} {
		if !strings.Contains(str, want) {
			t.Errorf("String() = %s, expected to contain %q", str, want)
		}
	}

	cfg.AuthorizationToken = ""
	if !strings.Contains(cfg.String(), "AuthorizationToken: <unset>") {
		t.Errorf("String() should mark an unset token: %s", cfg.String())
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeHTTP, LogLevel: "debug"}
	if !cfg.IsHTTPMode() || cfg.IsStdioMode() {
		t.Errorf("Expected http mode for %+v", cfg)
	}
	if !cfg.IsDebug() {
		t.Error("Expected debug for loglevel=debug")
	}

	cfg = &Config{Mode: ModeStdio, LogLevel: "info"}
	if cfg.IsHTTPMode() || !cfg.IsStdioMode() {
		t.Errorf("Expected stdio mode for %+v", cfg)
	}
	if cfg.IsDebug() {
		t.Error("Expected no debug for loglevel=info")
	}
}
