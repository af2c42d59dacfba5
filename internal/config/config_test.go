package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("VCO_HOST", "vco.example.com")
	t.Setenv("VCO_USERNAME", "monitor@example.com")
	t.Setenv("VCO_PASSWORD", "password")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vco.example.com", cfg.VCO.Host)
	assert.Equal(t, "monitor@example.com", cfg.VCO.Username)
	assert.False(t, cfg.VCO.Operator)
	assert.Equal(t, 30, cfg.VCO.Timeout)
	assert.False(t, cfg.VCO.Insecure)
	assert.Equal(t, 15, cfg.Probe.IntervalMinutes)
	assert.Equal(t, []string{"bytesRx", "bytesTx"}, cfg.Probe.Metrics)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing host",
			env:  map[string]string{"VCO_USERNAME": "u", "VCO_PASSWORD": "p"},
			want: "vco.host is required",
		},
		{
			name: "missing username",
			env:  map[string]string{"VCO_HOST": "h", "VCO_PASSWORD": "p"},
			want: "vco.username is required",
		},
		{
			name: "missing password",
			env:  map[string]string{"VCO_HOST": "h", "VCO_USERNAME": "u"},
			want: "vco.password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	content := `
vco:
  host: vco.example.com
  username: monitor@example.com
  password: password
  operator: true
  enterprise_ids: [3, 7]
  insecure: true
  proxy:
    url: http://proxy.example.com:3128
    username: proxyuser
    password: proxypass
probe:
  interval_minutes: 5
  metrics: [bpsOfBestPathRx]
log:
  level: debug
  format: console
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.VCO.Operator)
	assert.Equal(t, []int{3, 7}, cfg.VCO.EnterpriseIDs)
	assert.True(t, cfg.VCO.Insecure)
	assert.Equal(t, "http://proxy.example.com:3128", cfg.VCO.Proxy.URL)
	assert.Equal(t, "proxyuser", cfg.VCO.Proxy.Username)
	assert.Equal(t, 5, cfg.Probe.IntervalMinutes)
	assert.Equal(t, []string{"bpsOfBestPathRx"}, cfg.Probe.Metrics)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("VCO_HOST", "vco.example.com")
	t.Setenv("VCO_USERNAME", "monitor@example.com")
	t.Setenv("VCO_PASSWORD", "password")

	// A non-existent config path falls back to env and defaults
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "vco.example.com", cfg.VCO.Host)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			VCO: VCOConfig{
				Host:     "vco.example.com",
				Username: "u",
				Password: "p",
				Timeout:  30,
			},
			Probe: ProbeConfig{IntervalMinutes: 15},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero timeout", func(c *Config) { c.VCO.Timeout = 0 }, "timeout must be positive"},
		{"zero interval", func(c *Config) { c.Probe.IntervalMinutes = 0 }, "interval_minutes must be positive"},
		{"bad enterprise id", func(c *Config) { c.VCO.EnterpriseIDs = []int{0} }, "positive IDs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
