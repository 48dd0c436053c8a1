package config

import "time"

// Config holds runtime settings for the source CLI.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
	ChunkSize          int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 30 * time.Second
	c.ChunkSize = 64 * 1024
}

// LoadConfig applies defaults and then overlays the file at path, if any.
// Command-line flags are bound by the caller on top of the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}
	fc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	fc.apply(cfg)
	return cfg, nil
}
