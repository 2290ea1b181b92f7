package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/server/abuse"
	"github.com/dmitrijs2005/docdelivery/internal/server/tracing"
	"github.com/dmitrijs2005/docdelivery/internal/server/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDefaults(t *testing.T, c *Config) {
	t.Helper()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Empty(t, c.DatabaseDSN)
	assert.Equal(t, "signingSecret", c.SigningSecret)
	assert.Equal(t, "tokenMacSecret", c.TokenMACSecret)
	assert.Equal(t, "adminSecret", c.AdminSecret)
	assert.Equal(t, 24*time.Hour, c.TokenValidity)
	assert.Equal(t, 5*time.Minute, c.HandleValidity)
	assert.Equal(t, 10*time.Second, c.StorageTimeout)
	assert.Equal(t, 2*time.Minute, c.LockTTL)
	assert.Empty(t, c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Empty(t, c.RedisURL)
	assert.Empty(t, c.KafkaBrokers)
	assert.Equal(t, "docdelivery", c.KafkaGroupID)
	assert.Equal(t, "purchase.completed", c.KafkaPurchaseTopic)
	assert.Equal(t, "delivery.events", c.KafkaDeliveryTopic)
	assert.Equal(t, 20, c.RecentLimit)
	assert.Equal(t, watermark.DefaultCopyright, c.Copyright)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, tracing.ExporterNone, c.TraceExporter)
	assert.Equal(t, abuse.DefaultThresholds(), c.Thresholds())
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assertDefaults(t, &c)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")
	assertDefaults(t, c)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempFile(t, "", "cfg.yaml", `
endpoint_addr_grpc: ":7000"
database_dsn: "postgres://file"
max_devices: 9
`)
	os.Args = []string{"testbin", "--config", path, "-a", ":7001"}

	c := LoadConfig()

	assert.Equal(t, ":7001", c.EndpointAddrGRPC)
	assert.Equal(t, "postgres://file", c.DatabaseDSN)
	assert.Equal(t, 9, c.MaxDevices)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
}

func TestThresholds(t *testing.T) {
	c := Config{MaxAccessCount: 4, MaxDevices: 2, RapidWindow: time.Minute, RapidCount: 7}
	assert.Equal(t, abuse.Thresholds{MaxAccessCount: 4, MaxDevices: 2, RapidWindow: time.Minute, RapidCount: 7}, c.Thresholds())
}
