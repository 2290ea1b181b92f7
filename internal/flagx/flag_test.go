package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "short flag with separate value", args: []string{"-c", "conf.json", "-a", "localhost"}, want: "conf.json"},
		{name: "long flag with equals", args: []string{"--config=alt.yaml", "-a", "localhost"}, want: "alt.yaml"},
		{name: "long flag with separate value", args: []string{"--config", "/etc/docdelivery.yml"}, want: "/etc/docdelivery.yml"},
		{name: "short flag with equals", args: []string{"-c=short.json"}, want: "short.json"},
		{name: "unknown flags ignored", args: []string{"-x", "1", "--y=2", "positional"}, want: ""},
		{name: "repeated flag, last wins", args: []string{"-c", "one.json", "--config", "two.json"}, want: "two.json"},
		{name: "flag without value", args: []string{"-c"}, want: ""},
		{name: "empty args", args: []string{}, want: ""},
		{name: "nil args", args: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigPath(tt.args))
		})
	}
}

func TestNewFlagSet_SkipsUnknownFlags(t *testing.T) {
	fs := NewFlagSet("test")
	addr := fs.StringP("addr", "a", ":8080", "listen address")

	require.NoError(t, fs.Parse([]string{"--unknown", "value", "-a", ":9090", "--other=1"}))
	assert.Equal(t, ":9090", *addr)
}
