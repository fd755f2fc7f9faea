// Package config holds the capture command's configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

var (
	// ErrInvalidURL indicates the RTSP URL is missing or malformed
	ErrInvalidURL = errors.New("invalid RTSP URL")
	// ErrMissingPassword indicates no digest secret is available
	ErrMissingPassword = errors.New("missing stream password")
)

// PasswordEnvVar is the environment fallback for the digest secret.
const PasswordEnvVar = "STREAM_PASSWORD"

// Config holds application configuration
type Config struct {
	RTSPURL    string
	Port       int
	Username   string
	Realm      string
	Password   string
	OutputDir  string
	Timeout    time.Duration
	MaxPackets int
	LogLevel   string
}

// Validate normalizes the configuration and rejects unusable input.
func (c *Config) Validate() error {
	if c.RTSPURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(c.RTSPURL)
	if err != nil || u.Scheme != "rtsp" || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, c.RTSPURL)
	}

	if c.Password == "" {
		c.Password = os.Getenv(PasswordEnvVar)
	}
	if c.Username != "" && c.Password == "" {
		return fmt.Errorf("%w: supply --password or set %s", ErrMissingPassword, PasswordEnvVar)
	}

	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.MaxPackets <= 0 {
		c.MaxPackets = 4000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(
		"Configuration:\n  RTSP URL: %s\n  Output Dir: %s\n  Timeout: %v\n  Max Packets: %d\n  Log Level: %s",
		c.RTSPURL,
		c.OutputDir,
		c.Timeout,
		c.MaxPackets,
		c.LogLevel,
	)
}
