package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-filler/internal/config"
	"github.com/a3tai/pdf-filler/internal/storage"
)

const testVersion = "1.2.3"

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	t.Cleanup(func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	})

	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)

	for _, expected := range []string{
		"PDF Filler",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		if !strings.Contains(buf.String(), expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, buf.String())
		}
	}
}

func TestSetupLogging(t *testing.T) {
	tests := []struct {
		name       string
		config     *config.Config
		wantLevel  logrus.Level
		wantStdout bool
		wantStderr bool
	}{
		{
			name:       "http mode logs JSON to stdout",
			config:     &config.Config{Mode: config.ModeHTTP, LogLevel: "warn"},
			wantLevel:  logrus.WarnLevel,
			wantStdout: true,
		},
		{
			name:       "stdio mode with debug logs to stderr",
			config:     &config.Config{Mode: config.ModeStdio, LogLevel: "debug"},
			wantLevel:  logrus.DebugLevel,
			wantStderr: true,
		},
		{
			name:      "stdio mode without debug is silent",
			config:    &config.Config{Mode: config.ModeStdio, LogLevel: "info"},
			wantLevel: logrus.InfoLevel,
		},
		{
			name:       "invalid level falls back to info",
			config:     &config.Config{Mode: config.ModeHTTP, LogLevel: "loud"},
			wantLevel:  logrus.InfoLevel,
			wantStdout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			logger := setupLogging(tt.config, &stdout, &stderr)

			assert.Equal(t, tt.wantLevel, logger.GetLevel())
			logger.Error("probe")

			assert.Equal(t, tt.wantStdout, strings.Contains(stdout.String(), "probe"), "stdout: %q", stdout.String())
			assert.Equal(t, tt.wantStderr, strings.Contains(stderr.String(), "probe"), "stderr: %q", stderr.String())
		})
	}

	var stdout bytes.Buffer
	logger := setupLogging(&config.Config{Mode: config.ModeHTTP, LogLevel: "info"}, &stdout, io.Discard)
	logger.WithField("pdf", "a.pdf").Info("filled")
	assert.Contains(t, stdout.String(), `"pdf":"a.pdf"`)
}

func TestNewStorage(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx := context.Background()

	store, files, err := newStorage(ctx, &config.Config{StorageBackend: config.StorageNone}, logger)
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.Nil(t, files)

	root := filepath.Join(t.TempDir(), "stored")
	store, files, err = newStorage(ctx, &config.Config{
		StorageBackend: config.StorageLocal,
		StorageRoot:    root,
		Host:           "127.0.0.1",
		Port:           8080,
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, store)
	assert.NotNil(t, files)
	assert.DirExists(t, root)

	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	store, files, err = newStorage(ctx, &config.Config{StorageBackend: config.StorageS3, S3Region: "eu-west-1"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, store)
	assert.Nil(t, files)

	_, _, err = newStorage(ctx, &config.Config{StorageBackend: "ftp"}, logger)
	assert.Error(t, err)
}

func TestRun_StopsOnCanceledContext(t *testing.T) {
	for _, mode := range []string{config.ModeHTTP, config.ModeStdio} {
		t.Run(mode, func(t *testing.T) {
			logger := logrus.New()
			logger.SetOutput(io.Discard)

			cfg := config.DefaultConfig()
			cfg.Mode = mode
			cfg.Port = 0
			cfg.PDFDirectory = t.TempDir()
			cfg.PdftkPath = filepath.Join(t.TempDir(), "missing-pdftk")
			cfg.StorageBackend = config.StorageNone

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			assert.NoError(t, run(ctx, cfg, logger))
		})
	}
}

func TestRun_InvalidConfiguration(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.MaxFileSize = 0
	cfg.StorageBackend = config.StorageNone

	err := run(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create PDF service")
}
