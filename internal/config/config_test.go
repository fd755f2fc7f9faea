package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectedErr error
	}{
		{
			name:   "valid minimal configuration",
			config: Config{RTSPURL: "rtsp://camera.local/streamhd"},
		},
		{
			name:        "missing URL",
			config:      Config{},
			expectedErr: ErrInvalidURL,
		},
		{
			name:        "http scheme",
			config:      Config{RTSPURL: "http://camera.local/streamhd"},
			expectedErr: ErrInvalidURL,
		},
		{
			name:        "no host",
			config:      Config{RTSPURL: "rtsp:///streamhd"},
			expectedErr: ErrInvalidURL,
		},
		{
			name: "username with explicit password",
			config: Config{
				RTSPURL:  "rtsp://camera.local/streamhd",
				Username: "stream",
				Password: "secret",
			},
		},
		{
			name: "username without any password",
			config: Config{
				RTSPURL:  "rtsp://camera.local/streamhd",
				Username: "stream",
			},
			expectedErr: ErrMissingPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(PasswordEnvVar, "")

			err := tt.config.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_PasswordFromEnvironment(t *testing.T) {
	t.Setenv(PasswordEnvVar, "hunter2")

	cfg := Config{
		RTSPURL:  "rtsp://camera.local/streamhd",
		Username: "stream",
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "hunter2", cfg.Password)
}

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := Config{RTSPURL: "rtsp://camera.local/streamhd"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, 4000, cfg.MaxPackets)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_Validate_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		RTSPURL:    "rtsp://camera.local/streamhd",
		OutputDir:  "/tmp/captures",
		Timeout:    30 * time.Second,
		MaxPackets: 100,
		LogLevel:   "debug",
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "/tmp/captures", cfg.OutputDir)
	assert.Equal(t, 100, cfg.MaxPackets)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfig_String(t *testing.T) {
	cfg := Config{RTSPURL: "rtsp://camera.local/streamhd"}
	require.NoError(t, cfg.Validate())

	s := cfg.String()
	assert.Contains(t, s, "rtsp://camera.local/streamhd")
	assert.Contains(t, s, "Max Packets: 4000")
}
