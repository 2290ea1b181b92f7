package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvAccessToken, "")
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Empty(t, c.AccessToken)
	assert.Equal(t, "adminSecret", c.SigningSecret)
	assert.Equal(t, 10*time.Second, c.Timeout)
}

func TestLoadDefaults_TokenFromEnv(t *testing.T) {
	t.Setenv(EnvAccessToken, "env-token")
	var c Config
	c.LoadDefaults()
	assert.Equal(t, "env-token", c.AccessToken)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvAccessToken, "env-token")

	tests := []struct {
		name     string
		args     []string
		wantAddr string
		wantTok  string
		wantTO   time.Duration
		wantRest []string
	}{
		{
			name:     "defaults only",
			args:     []string{"analytics"},
			wantAddr: "127.0.0.1:50051",
			wantTok:  "env-token",
			wantTO:   10 * time.Second,
			wantRest: []string{"analytics"},
		},
		{
			name:     "short flags",
			args:     []string{"-a", "srv:9000", "-t", "flag-token", "create", "u1", "d1", "p1"},
			wantAddr: "srv:9000",
			wantTok:  "flag-token",
			wantTO:   10 * time.Second,
			wantRest: []string{"create", "u1", "d1", "p1"},
		},
		{
			name:     "long flags stop at command",
			args:     []string{"--addr=srv:1", "--timeout", "3s", "block", "--reason", "x"},
			wantAddr: "srv:1",
			wantTok:  "env-token",
			wantTO:   3 * time.Second,
			wantRest: []string{"block", "--reason", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, rest, err := LoadConfig(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, cfg.ServerEndpointAddr)
			assert.Equal(t, tt.wantTok, cfg.AccessToken)
			assert.Equal(t, tt.wantTO, cfg.Timeout)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	_, _, err := LoadConfig([]string{"--bogus"})
	assert.Error(t, err)

	_, _, err = LoadConfig([]string{"--timeout", "soon"})
	assert.Error(t, err)
}
