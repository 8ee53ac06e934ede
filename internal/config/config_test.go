package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file and no env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, int64(16<<20), cfg.Server.MaxUploadBytes)
				assert.Equal(t, []string{"xlsx", "xls", "csv"}, cfg.Uploads.AllowedExtensions)
				assert.Equal(t, 5, cfg.Uploads.PreviewRows)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)
				assert.False(t, cfg.Export.PDFEnabled)
				assert.False(t, cfg.Export.SheetsEnabled())
			},
		},
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9000
uploads:
  preview_rows: 10
  allowed_extensions: [".CSV", "xlsx"]
export:
  pdf_enabled: true
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, 10, cfg.Uploads.PreviewRows)
				assert.Equal(t, []string{"csv", "xlsx"}, cfg.Uploads.AllowedExtensions)
				assert.True(t, cfg.Export.PDFEnabled)
				// untouched sections keep defaults
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "env overrides file",
			file: "server:\n  port: 9000\n",
			env: map[string]string{
				"PRICINGLAB_SERVER_PORT":                "9100",
				"PRICINGLAB_UPLOADS_ALLOWED_EXTENSIONS": "csv",
				"PRICINGLAB_LOGGING_LEVEL":              "DEBUG",
				"PRICINGLAB_UPLOADS_RETENTION":          "2h",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9100, cfg.Server.Port)
				assert.Equal(t, []string{"csv"}, cfg.Uploads.AllowedExtensions)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 2*time.Hour, cfg.Uploads.Retention)
			},
		},
		{
			name: "format is forced to json",
			env:  map[string]string{"PRICINGLAB_LOGGING_FORMAT": "text"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"PRICINGLAB_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "unparseable env value",
			env:     map[string]string{"PRICINGLAB_SERVER_PORT": "eighty"},
			wantErr: true,
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"PRICINGLAB_LOGGING_LEVEL": "verbose"},
			wantErr: true,
		},
		{
			name:    "pong wait must exceed ping period",
			file:    "websocket:\n  ping_period: 60s\n  pong_wait: 30s\n",
			wantErr: true,
		},
		{
			name:    "sheets credentials without spreadsheet",
			env:     map[string]string{"PRICINGLAB_EXPORT_SHEETS_CREDENTIALS_FILE": "/etc/creds.json"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9321\n")
	t.Setenv("PRICINGLAB_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9321, cfg.Server.Port)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.normalize()
	assert.NoError(t, cfg.validate())
}

func TestUploadsConfig_AllowsExtension(t *testing.T) {
	u := UploadsConfig{AllowedExtensions: []string{"xlsx", "xls", "csv"}}

	assert.True(t, u.AllowsExtension(".csv"))
	assert.True(t, u.AllowsExtension("XLSX"))
	assert.False(t, u.AllowsExtension(".json"))
	assert.False(t, u.AllowsExtension(""))
}

func TestExportConfig_SheetsEnabled(t *testing.T) {
	assert.False(t, ExportConfig{SheetsCredentialsFile: "a.json"}.SheetsEnabled())
	assert.True(t, ExportConfig{SheetsCredentialsFile: "a.json", SheetsSpreadsheetID: "sheet"}.SheetsEnabled())
}
