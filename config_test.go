/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-key"},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, "--tls-cert"},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"empty send buffer", func(c *Config) { c.sendBuffer = 0 }, "invalid send buffer"},
		{"zero write timeout", func(c *Config) { c.writeTimeout = 0 }, "invalid write timeout"},
		{"negative write timeout", func(c *Config) { c.writeTimeout = -time.Second }, "invalid write timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Scheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmd_FlagsAndEnv(t *testing.T) {
	t.Setenv("IMPOSTOR_SEND_BUFFER", "32")
	t.Setenv("IMPOSTOR_REVEAL_ROLES", "true")

	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--port", "9000", "--write-timeout", "3s"}))

	assert.Equal(t, 9000, cfg.port)
	assert.Equal(t, 3*time.Second, cfg.writeTimeout)
	assert.Equal(t, 32, cfg.sendBuffer)
	assert.True(t, cfg.revealRoles)
	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.NoError(t, cfg.validate())
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}
