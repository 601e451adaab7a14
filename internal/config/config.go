package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRegistryURL 默认的 Speedtest.net 服务器列表
const DefaultRegistryURL = "https://gist.githubusercontent.com/epixoip/2b8696ed577d584a7f484c006d945051/raw/d6f15e84d9496d5b95c3fe8df706764fb16de1e7/SpeedTest.Net%2520Server%2520List"

// Config 结构用于映射 config.yaml 文件的内容
type Config struct {
	RegistryURL         string        `yaml:"registry_url" json:"registry_url"`
	RegistryFallbackURL string        `yaml:"registry_fallback_url" json:"registry_fallback_url"`
	RegistryFile        string        `yaml:"registry_file" json:"registry_file"`
	RegistryCacheTTL    time.Duration `yaml:"registry_cache_ttl" json:"registry_cache_ttl"`
	CountryCode         string        `yaml:"country_code" json:"country_code"`

	GeoLookupURL string   `yaml:"geo_lookup_url" json:"geo_lookup_url"`
	LocationFile string   `yaml:"location_file" json:"location_file"`
	Latitude     *float64 `yaml:"latitude" json:"latitude"`
	Longitude    *float64 `yaml:"longitude" json:"longitude"`

	Port             int           `yaml:"port" json:"port"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	ProbeConcurrency int           `yaml:"probe_concurrency" json:"probe_concurrency"`

	ChunkSize     int           `yaml:"chunk_size" json:"chunk_size"`
	ChunkCount    int           `yaml:"chunk_count" json:"chunk_count"`
	ChunkTimeout  time.Duration `yaml:"chunk_timeout" json:"chunk_timeout"`
	RateLimitMbps float64       `yaml:"rate_limit_mbps" json:"rate_limit_mbps"`

	HistoryPath string `yaml:"history_path" json:"history_path"`
	ListenPort  int    `yaml:"listen_port" json:"listen_port"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		RegistryURL:      DefaultRegistryURL,
		RegistryCacheTTL: 30 * time.Minute,
		GeoLookupURL:     "http://ip-api.com/json/",
		Port:             80,
		ProbeTimeout:     2 * time.Second,
		ProbeConcurrency: 1,
		ChunkSize:        4096,
		ChunkCount:       100,
		ChunkTimeout:     10 * time.Second,
		HistoryPath:      "history.db",
		ListenPort:       8080,
		LogLevel:         "info",
	}
}

// LoadConfig 从指定路径加载和解析 YAML 配置文件，未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件 '%s' 无效: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.RegistryURL == "" && c.RegistryFile == "" {
		return errors.New("registry_url and registry_file are both empty")
	}
	if c.CountryCode != "" && len(c.CountryCode) != 2 {
		return fmt.Errorf("country_code must be two letters, got %q", c.CountryCode)
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("latitude and longitude must be set together")
	}
	if c.Latitude == nil && c.LocationFile == "" && c.GeoLookupURL == "" {
		return errors.New("one of latitude/longitude, location_file or geo_lookup_url is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.ProbeConcurrency <= 0 {
		return fmt.Errorf("probe_concurrency must be positive, got %d", c.ProbeConcurrency)
	}
	if c.ChunkSize <= 0 || c.ChunkCount <= 0 {
		return fmt.Errorf("chunk_size and chunk_count must be positive, got %d x %d", c.ChunkSize, c.ChunkCount)
	}
	if c.ChunkTimeout <= 0 {
		return fmt.Errorf("chunk_timeout must be positive, got %s", c.ChunkTimeout)
	}
	if c.RateLimitMbps < 0 {
		return fmt.Errorf("rate_limit_mbps must not be negative, got %v", c.RateLimitMbps)
	}
	return nil
}
