package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultDiscoveryTimeoutMS = 5000
	defaultConnectingTickMS   = 300
	defaultRevertDelayMS      = 2000
)

type Config struct {
	MediaURL           string `json:"media_url"`
	MediaTitle         string `json:"media_title"`
	DiscoveryTimeoutMS int    `json:"discovery_timeout_ms"`
	ConnectingTickMS   int    `json:"connecting_tick_ms"`
	RevertDelayMS      int    `json:"revert_delay_ms"`
}

// Default returns the settings written on first run. An empty media URL
// means the built-in test video.
func Default() *Config {
	return &Config{
		DiscoveryTimeoutMS: defaultDiscoveryTimeoutMS,
		ConnectingTickMS:   defaultConnectingTickMS,
		RevertDelayMS:      defaultRevertDelayMS,
	}
}

func GetAppConfig() (*Config, error) {
	path, err := appPath()
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to access config path due to error: %w", err)
	}

	cfgfile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err := os.MkdirAll(filepath.Dir(path), 0700)
			if err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default path due to error: %w", err)
			}

			conf := Default()
			if err := conf.write(path); err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default config due to error: %w", err)
			}

			return conf, nil
		}

		return nil, fmt.Errorf("GetAppConfig: failed to open config due to error: %w", err)
	}
	defer cfgfile.Close()

	conf := Default()
	if err := json.NewDecoder(cfgfile).Decode(conf); err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to decode config due to error: %w", err)
	}
	conf.fillDefaults()

	return conf, nil
}

func appPath() (string, error) {
	oscfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config file due to error: %w", err)
	}

	return filepath.Join(oscfg, "castplay", "settings.json"), nil
}

// fillDefaults replaces non-positive timings, which would stall the
// connecting animation or revert immediately.
func (s *Config) fillDefaults() {
	if s.DiscoveryTimeoutMS <= 0 {
		s.DiscoveryTimeoutMS = defaultDiscoveryTimeoutMS
	}
	if s.ConnectingTickMS <= 0 {
		s.ConnectingTickMS = defaultConnectingTickMS
	}
	if s.RevertDelayMS <= 0 {
		s.RevertDelayMS = defaultRevertDelayMS
	}
}

func (s *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(s.DiscoveryTimeoutMS) * time.Millisecond
}

func (s *Config) ConnectingTick() time.Duration {
	return time.Duration(s.ConnectingTickMS) * time.Millisecond
}

func (s *Config) RevertDelay() time.Duration {
	return time.Duration(s.RevertDelayMS) * time.Millisecond
}

func (s *Config) write(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, b, 0644)
}

func (s *Config) SaveAppConfig() error {
	path, err := appPath()
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to access config path due to error: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("SaveAppConfig: failed to create config path due to error: %w", err)
	}

	if err := s.write(path); err != nil {
		return fmt.Errorf("SaveAppConfig: failed save config due to error: %w", err)
	}

	return nil
}
