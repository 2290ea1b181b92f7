package config

import (
	"io"

	"github.com/spf13/pflag"
)

// parseFlags overlays cfg with global flags. Parsing stops at the first
// positional argument so per-command flags reach the command untouched.
//
//	-a --addr     address and port of the delivery server
//	-t --token    access token (falls back to $DOCCTL_TOKEN)
//	-s --secret   signing secret for the token command
//	   --timeout  per-call deadline
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := pflag.NewFlagSet("docctl", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	fs.StringVarP(&cfg.ServerEndpointAddr, "addr", "a", cfg.ServerEndpointAddr, "address and port of the delivery server")
	fs.StringVarP(&cfg.AccessToken, "token", "t", cfg.AccessToken, "access token")
	fs.StringVarP(&cfg.SigningSecret, "secret", "s", cfg.SigningSecret, "signing secret for minting tokens")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-call deadline")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}
