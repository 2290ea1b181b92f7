// Package flagx holds command-line helpers shared by the server binaries.
package flagx

import (
	"io"

	"github.com/spf13/pflag"
)

// NewFlagSet returns a pflag set that skips flags it does not define, so
// several parsers can each read their own subset of one command line.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	return fs
}

// ConfigPath extracts the config file path given via -c or --config.
//
// Every other argument is ignored. If the flag is absent, or its value is
// missing, an empty string is returned.
func ConfigPath(args []string) string {
	fs := NewFlagSet("config")
	fs.SetOutput(io.Discard)
	path := fs.StringP("config", "c", "", "path to config file (.json, .yaml or .yml)")
	_ = fs.Parse(args)
	return *path
}
