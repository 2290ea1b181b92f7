// Package config handles configuration for the delivery server,
// including defaults, a JSON or YAML file overlay, and command-line flags.
package config

import (
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/abuse"
	"github.com/dmitrijs2005/docdelivery/internal/server/analytics"
	"github.com/dmitrijs2005/docdelivery/internal/server/tracing"
	"github.com/dmitrijs2005/docdelivery/internal/server/watermark"
)

// Config holds runtime settings for the delivery server.
//
// Fields:
//   - EndpointAddrGRPC / EndpointAddrHTTP: bind addresses for gRPC and HTTP.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects in-memory repositories.
//   - SigningSecret / TokenMACSecret: download token keys. Do not use test defaults in prod.
//   - AdminSecret: HMAC secret for admin JWTs (HS256).
//   - TokenValidity / HandleValidity: download token and retrieval handle lifetimes.
//   - StorageTimeout / LockTTL: blob store deadline and generation lock lifetime.
//   - S3User / S3Password / S3Bucket / S3Region / S3BaseEndpoint: object storage.
//     An empty bucket selects the in-memory blob store.
//   - RedisURL: distributed generation lock. Empty selects process-local locks.
//   - KafkaBrokers / KafkaGroupID / KafkaPurchaseTopic / KafkaDeliveryTopic: events.
//     No brokers disables the consumer and logs delivery events instead.
//   - MaxAccessCount / MaxDevices / RapidWindow / RapidCount: abuse thresholds.
//   - RecentLimit: default size of the analytics recent-activity feed.
//   - Copyright: line stamped on every watermarked copy.
//   - CatalogFixture: optional YAML catalog loaded at startup.
//   - LogLevel: debug, info, warn or error.
//   - TraceExporter: none or stdout.
type Config struct {
	EndpointAddrGRPC   string
	EndpointAddrHTTP   string
	DatabaseDSN        string
	SigningSecret      string
	TokenMACSecret     string
	AdminSecret        string
	TokenValidity      time.Duration
	HandleValidity     time.Duration
	StorageTimeout     time.Duration
	LockTTL            time.Duration
	S3User             string
	S3Password         string
	S3Bucket           string
	S3Region           string
	S3BaseEndpoint     string
	RedisURL           string
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaPurchaseTopic string
	KafkaDeliveryTopic string
	MaxAccessCount     int64
	MaxDevices         int
	RapidWindow        time.Duration
	RapidCount         int
	RecentLimit        int
	Copyright          string
	CatalogFixture     string
	LogLevel           string
	TraceExporter      string
}

// LoadDefaults populates Config with development defaults that run the
// server fully in memory.
// NOTE: the secrets are insecure for production and must be overridden.
func (c *Config) LoadDefaults() {
	th := abuse.DefaultThresholds()

	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SigningSecret = "signingSecret"
	c.TokenMACSecret = "tokenMacSecret"
	c.AdminSecret = "adminSecret"
	c.TokenValidity = common.TokenValidity
	c.HandleValidity = common.HandleValidity
	c.StorageTimeout = 10 * time.Second
	c.LockTTL = 2 * time.Minute
	c.S3User = ""
	c.S3Password = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.RedisURL = ""
	c.KafkaBrokers = nil
	c.KafkaGroupID = "docdelivery"
	c.KafkaPurchaseTopic = "purchase.completed"
	c.KafkaDeliveryTopic = "delivery.events"
	c.MaxAccessCount = th.MaxAccessCount
	c.MaxDevices = th.MaxDevices
	c.RapidWindow = th.RapidWindow
	c.RapidCount = th.RapidCount
	c.RecentLimit = analytics.DefaultRecentLimit
	c.Copyright = watermark.DefaultCopyright
	c.CatalogFixture = ""
	c.LogLevel = "info"
	c.TraceExporter = tracing.ExporterNone
}

// Thresholds returns the abuse thresholds carried by the config.
func (c *Config) Thresholds() abuse.Thresholds {
	return abuse.Thresholds{
		MaxAccessCount: c.MaxAccessCount,
		MaxDevices:     c.MaxDevices,
		RapidWindow:    c.RapidWindow,
		RapidCount:     c.RapidCount,
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
