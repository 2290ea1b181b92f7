package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/docdelivery/internal/flagx"
	"github.com/dmitrijs2005/docdelivery/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. It uses
// timex.Duration for interval fields, which accepts both strings such as
// "90s" and integer nanoseconds.
//
// FileConfig is only a DTO: after decoding, every non-zero field is copied
// into the runtime Config, so a partial file overrides only what it names.
type FileConfig struct {
	EndpointAddrGRPC   string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP   string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN        string         `json:"database_dsn" yaml:"database_dsn"`
	SigningSecret      string         `json:"signing_secret" yaml:"signing_secret"`
	TokenMACSecret     string         `json:"token_mac_secret" yaml:"token_mac_secret"`
	AdminSecret        string         `json:"admin_secret" yaml:"admin_secret"`
	TokenValidity      timex.Duration `json:"token_validity" yaml:"token_validity"`
	HandleValidity     timex.Duration `json:"handle_validity" yaml:"handle_validity"`
	StorageTimeout     timex.Duration `json:"storage_timeout" yaml:"storage_timeout"`
	LockTTL            timex.Duration `json:"lock_ttl" yaml:"lock_ttl"`
	S3User             string         `json:"s3_user" yaml:"s3_user"`
	S3Password         string         `json:"s3_password" yaml:"s3_password"`
	S3Bucket           string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region           string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	RedisURL           string         `json:"redis_url" yaml:"redis_url"`
	KafkaBrokers       []string       `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaGroupID       string         `json:"kafka_group_id" yaml:"kafka_group_id"`
	KafkaPurchaseTopic string         `json:"kafka_purchase_topic" yaml:"kafka_purchase_topic"`
	KafkaDeliveryTopic string         `json:"kafka_delivery_topic" yaml:"kafka_delivery_topic"`
	MaxAccessCount     int64          `json:"max_access_count" yaml:"max_access_count"`
	MaxDevices         int            `json:"max_devices" yaml:"max_devices"`
	RapidWindow        timex.Duration `json:"rapid_window" yaml:"rapid_window"`
	RapidCount         int            `json:"rapid_count" yaml:"rapid_count"`
	RecentLimit        int            `json:"recent_limit" yaml:"recent_limit"`
	Copyright          string         `json:"copyright" yaml:"copyright"`
	CatalogFixture     string         `json:"catalog_fixture" yaml:"catalog_fixture"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	TraceExporter      string         `json:"trace_exporter" yaml:"trace_exporter"`
}

// parseFile loads configuration values from the file named by -c/--config.
//
// The format follows the extension: .yaml and .yml are decoded with
// yaml.v3, anything else as JSON. If no path is given nothing happens.
// If the file cannot be read or decoded, the function panics.
func parseFile(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if path == "" {
		return
	}

	fc, err := readFile(path)
	if err != nil {
		panic(err)
	}
	fc.apply(config)
}

func readFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return fc, nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.SigningSecret, fc.SigningSecret)
	setString(&c.TokenMACSecret, fc.TokenMACSecret)
	setString(&c.AdminSecret, fc.AdminSecret)
	setString(&c.S3User, fc.S3User)
	setString(&c.S3Password, fc.S3Password)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.KafkaGroupID, fc.KafkaGroupID)
	setString(&c.KafkaPurchaseTopic, fc.KafkaPurchaseTopic)
	setString(&c.KafkaDeliveryTopic, fc.KafkaDeliveryTopic)
	setString(&c.Copyright, fc.Copyright)
	setString(&c.CatalogFixture, fc.CatalogFixture)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.TraceExporter, fc.TraceExporter)

	if fc.TokenValidity.Duration > 0 {
		c.TokenValidity = fc.TokenValidity.Duration
	}
	if fc.HandleValidity.Duration > 0 {
		c.HandleValidity = fc.HandleValidity.Duration
	}
	if fc.StorageTimeout.Duration > 0 {
		c.StorageTimeout = fc.StorageTimeout.Duration
	}
	if fc.LockTTL.Duration > 0 {
		c.LockTTL = fc.LockTTL.Duration
	}
	if fc.RapidWindow.Duration > 0 {
		c.RapidWindow = fc.RapidWindow.Duration
	}

	if len(fc.KafkaBrokers) > 0 {
		c.KafkaBrokers = append([]string(nil), fc.KafkaBrokers...)
	}
	if fc.MaxAccessCount > 0 {
		c.MaxAccessCount = fc.MaxAccessCount
	}
	if fc.MaxDevices > 0 {
		c.MaxDevices = fc.MaxDevices
	}
	if fc.RapidCount > 0 {
		c.RapidCount = fc.RapidCount
	}
	if fc.RecentLimit > 0 {
		c.RecentLimit = fc.RecentLimit
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
