package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the runtime knobs shared by every cronverge command.
type Config struct {
	LogLevel       string
	HTTPListenAddr string
	// SSHKeyPath is the default private key for hosts that don't set
	// key_path in the inventory.
	SSHKeyPath  string
	SSHPassword string
	SSHTimeout  time.Duration
	// ApplyInterval is how often serve mode re-converges.
	ApplyInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":9115"),
		SSHKeyPath:     getEnv("SSH_KEY_PATH", os.ExpandEnv("${HOME}/.ssh/id_rsa")),
		SSHPassword:    getEnv("SSH_PASSWORD", ""),
	}

	var err error
	cfg.SSHTimeout, err = getDuration("SSH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ApplyInterval, err = getDuration("APPLY_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}
