package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkCount)
}

func TestLoadConfig(t *testing.T) {
	t.Run("overrides keep defaults", func(t *testing.T) {
		path := writeConfig(t, `
country_code: US
probe_timeout: 500ms
latitude: 40.7
longitude: -74.0
chunk_count: 10
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "US", cfg.CountryCode)
		assert.Equal(t, 500*time.Millisecond, cfg.ProbeTimeout)
		require.NotNil(t, cfg.Latitude)
		assert.InDelta(t, 40.7, *cfg.Latitude, 1e-9)
		assert.Equal(t, 10, cfg.ChunkCount)
		assert.Equal(t, 4096, cfg.ChunkSize)
		assert.Equal(t, DefaultRegistryURL, cfg.RegistryURL)
	})

	t.Run("invalid country code", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "country_code: USA\n"))
		assert.Error(t, err)
	})

	t.Run("half coordinates", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "latitude: 1.5\n"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "port: [\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero port":         func(c *Config) { c.Port = 0 },
		"zero probe":        func(c *Config) { c.ProbeTimeout = 0 },
		"zero concurrency":  func(c *Config) { c.ProbeConcurrency = 0 },
		"zero chunk size":   func(c *Config) { c.ChunkSize = 0 },
		"zero chunk count":  func(c *Config) { c.ChunkCount = 0 },
		"zero chunk wait":   func(c *Config) { c.ChunkTimeout = 0 },
		"negative limit":    func(c *Config) { c.RateLimitMbps = -1 },
		"no registry":       func(c *Config) { c.RegistryURL = "" },
		"no geo source":     func(c *Config) { c.GeoLookupURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
