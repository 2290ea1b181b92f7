// Package config loads settings for the docctl administrative client.
package config

import (
	"os"
	"time"
)

// EnvAccessToken names the environment variable consulted for the access
// token when no --token flag is given.
const EnvAccessToken = "DOCCTL_TOKEN"

// Config holds runtime settings for docctl.
//
// Fields:
//   - ServerEndpointAddr: host:port of the delivery gRPC endpoint.
//   - AccessToken: bearer JWT sent in the access_token metadata header.
//   - SigningSecret: HMAC key used by the "token" command to mint JWTs.
//   - Timeout: per-call deadline.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	SigningSecret      string
	Timeout            time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AccessToken = os.Getenv(EnvAccessToken)
	c.SigningSecret = "adminSecret"
	c.Timeout = 10 * time.Second
}

// LoadConfig applies defaults, then overlays command-line flags from args.
// The remaining positional arguments (the command and its operands) are
// returned alongside the config.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}
