package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeHTTP  = "http"
	ModeStdio = "stdio"

	// Storage backends
	StorageS3    = "s3"
	StorageLocal = "local"
	StorageNone  = "none"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultPdftkPath       = "pdftk"
	DefaultDownloadTimeout = 30 * time.Second
	DefaultEnvFile         = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PDF_FILLER"
)

// Config holds all configuration for the PDF filler
type Config struct {
	// Server configuration
	Mode string // "http" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory    string
	PdftkPath       string
	MaxFileSize     int64 // Maximum PDF file size in bytes
	DownloadTimeout time.Duration
	Flatten         bool
	CompressOutput  bool

	// Storage configuration
	StorageBackend string
	StorageRoot    string
	StorageBaseURL string
	S3Region       string
	S3PublicRead   bool

	// AuthorizationToken guards the store endpoint. Empty rejects every store request.
	AuthorizationToken string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:            ModeHTTP,
		Host:            DefaultHost,
		Port:            DefaultPort,
		PDFDirectory:    currentDir,
		PdftkPath:       DefaultPdftkPath,
		MaxFileSize:     DefaultMaxFileSize,
		DownloadTimeout: DefaultDownloadTimeout,
		StorageBackend:  StorageS3,
		Version:         "1.0.0",
		ServerName:      "pdf-filler",
		LogLevel:        DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
// Precedence is flags, then environment (including an optional .env file), then defaults.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}
	if cfg.StorageRoot != "" {
		if expandedPath, err := filepath.Abs(cfg.StorageRoot); err == nil {
			cfg.StorageRoot = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvFile reads KEY=value pairs from PDF_FILLER_ENV_FILE or ./.env without overriding the real environment
func loadEnvFile() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Unprefixed names kept for deployments that already export them
	_ = viper.BindEnv("authorization-token", envPrefix+"_AUTHORIZATION_TOKEN", "AUTHORIZATION_TOKEN")
	_ = viper.BindEnv("pdftk", envPrefix+"_PDFTK", "PATH_TO_PDFTK")
	_ = viper.BindEnv("port", envPrefix+"_PORT", "PORT")

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("pdftk", cfg.PdftkPath)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("download-timeout", cfg.DownloadTimeout)
	viper.SetDefault("flatten", cfg.Flatten)
	viper.SetDefault("compress-output", cfg.CompressOutput)
	viper.SetDefault("storage", cfg.StorageBackend)
	viper.SetDefault("storage-root", cfg.StorageRoot)
	viper.SetDefault("storage-base-url", cfg.StorageBaseURL)
	viper.SetDefault("s3-region", cfg.S3Region)
	viper.SetDefault("s3-public-read", cfg.S3PublicRead)
	viper.SetDefault("authorization-token", cfg.AuthorizationToken)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'http' for the HTTP API, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (http mode only)")
	pflag.Int("port", cfg.Port, "Server port (http mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory local PDF paths are resolved against")
	pflag.String("pdftk", cfg.PdftkPath, "Path to the pdftk binary")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Duration("download-timeout", cfg.DownloadTimeout, "Timeout for fetching remote PDFs")
	pflag.Bool("flatten", cfg.Flatten, "Flatten filled forms")
	pflag.Bool("compress-output", cfg.CompressOutput, "Compress filled PDFs before returning them")
	pflag.String("storage", cfg.StorageBackend, "Storage backend for /store: 's3', 'local' or 'none'")
	pflag.String("storage-root", cfg.StorageRoot, "Root directory of the local storage backend")
	pflag.String("storage-base-url", cfg.StorageBaseURL, "Base URL of stored documents")
	pflag.String("s3-region", cfg.S3Region, "AWS region of the S3 storage backend")
	pflag.Bool("s3-public-read", cfg.S3PublicRead, "Upload S3 objects with the public-read ACL")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "pdftk", "loglevel", "maxfilesize", "download-timeout",
		"flatten", "compress-output", "storage", "storage-root", "storage-base-url",
		"s3-region", "s3-public-read",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Filler - fill PDF forms over HTTP using pdftk\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # HTTP API on 127.0.0.1:8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --storage=local --storage-root=/srv/pdfs\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/forms         # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  AUTHORIZATION_TOKEN          Token required by POST /store\n")
		fmt.Fprintf(os.Stderr, "  PATH_TO_PDFTK                Path to the pdftk binary\n")
		fmt.Fprintf(os.Stderr, "  PDF_FILLER_<FLAG>            Any flag, upper-cased with '-' as '_'\n")
		fmt.Fprintf(os.Stderr, "  PDF_FILLER_ENV_FILE          Env file to load (default .env)\n")
		fmt.Fprintf(os.Stderr, "  AWS_*                        Standard AWS SDK credentials and region\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.PdftkPath = viper.GetString("pdftk")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.DownloadTimeout = viper.GetDuration("download-timeout")
	cfg.Flatten = viper.GetBool("flatten")
	cfg.CompressOutput = viper.GetBool("compress-output")
	cfg.StorageBackend = viper.GetString("storage")
	cfg.StorageRoot = viper.GetString("storage-root")
	cfg.StorageBaseURL = viper.GetString("storage-base-url")
	cfg.S3Region = viper.GetString("s3-region")
	cfg.S3PublicRead = viper.GetBool("s3-public-read")
	cfg.AuthorizationToken = viper.GetString("authorization-token")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeHTTP && c.Mode != ModeStdio {
		return errors.New("mode must be either 'http' or 'stdio'")
	}

	// Validate port range (only for http mode)
	if c.Mode == ModeHTTP && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.PdftkPath == "" {
		return errors.New("pdftk path cannot be empty")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.DownloadTimeout <= 0 {
		return errors.New("download timeout must be positive")
	}

	switch c.StorageBackend {
	case StorageS3, StorageNone:
	case StorageLocal:
		if c.StorageRoot == "" {
			return errors.New("storage root is required for the local storage backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be one of: s3, local, none)", c.StorageBackend)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublicBaseURL returns the URL stored documents are served under
func (c *Config) PublicBaseURL() string {
	if c.StorageBaseURL != "" {
		return strings.TrimRight(c.StorageBaseURL, "/")
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration with secrets redacted
func (c *Config) String() string {
	token := "<unset>"
	if c.AuthorizationToken != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, Pdftk: %s, LogLevel: %s, "+
		"MaxFileSize: %d, Storage: %s, AuthorizationToken: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.PdftkPath, c.LogLevel,
		c.MaxFileSize, c.StorageBackend, token)
}

// IsHTTPMode returns true if the HTTP API should be served
func (c *Config) IsHTTPMode() bool {
	return c.Mode == ModeHTTP
}

// IsStdioMode returns true if MCP tools should be served over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
