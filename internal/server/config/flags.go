package config

import (
	"os"

	"github.com/dmitrijs2005/docdelivery/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a, --grpc-addr string              gRPC bind address (e.g. ":50051")
//	-w, --http-addr string              HTTP bind address (e.g. ":8080")
//	-d, --database-dsn string           PostgreSQL DSN, empty for in-memory stores
//	-s, --signing-secret string         download token signing secret
//	-m, --token-mac-secret string       download token fingerprint secret
//	-k, --admin-secret string           admin JWT HMAC secret
//	-t, --token-validity duration       download token lifetime
//	-r, --handle-validity duration      retrieval handle lifetime
//	    --storage-timeout duration      blob store operation deadline
//	    --lock-ttl duration             generation lock lifetime
//	-u, --s3-user string                S3 access key
//	-p, --s3-password string            S3 secret key
//	-b, --s3-bucket string              S3 bucket, empty for in-memory blobs
//	-g, --s3-region string              S3 region
//	-e, --s3-endpoint string            S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-R, --redis-url string              Redis URL for distributed locks
//	-K, --kafka-brokers strings         Kafka brokers, comma separated
//	    --kafka-group string            Kafka consumer group
//	    --kafka-purchase-topic string   topic carrying completed purchases
//	    --kafka-delivery-topic string   topic receiving delivery events
//	    --max-access-count int          excessive_downloads threshold
//	    --max-devices int               multiple_devices threshold
//	    --rapid-window duration         rapid_downloads window
//	    --rapid-count int               rapid_downloads threshold
//	    --recent-limit int              analytics recent feed size
//	    --copyright string              copyright line stamped on copies
//	-f, --catalog-fixture string        YAML catalog loaded at startup
//	-L, --log-level string              debug, info, warn or error
//
// Flags not listed here, including -c/--config, are skipped so other
// parsers can share the command line.
func parseFlags(config *Config) {
	fs := flagx.NewFlagSet("main")

	fs.StringVarP(&config.EndpointAddrGRPC, "grpc-addr", "a", config.EndpointAddrGRPC, "gRPC bind address")
	fs.StringVarP(&config.EndpointAddrHTTP, "http-addr", "w", config.EndpointAddrHTTP, "HTTP bind address")
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "database DSN")
	fs.StringVarP(&config.SigningSecret, "signing-secret", "s", config.SigningSecret, "download token signing secret")
	fs.StringVarP(&config.TokenMACSecret, "token-mac-secret", "m", config.TokenMACSecret, "download token fingerprint secret")
	fs.StringVarP(&config.AdminSecret, "admin-secret", "k", config.AdminSecret, "admin JWT secret")

	fs.DurationVarP(&config.TokenValidity, "token-validity", "t", config.TokenValidity, "download token lifetime")
	fs.DurationVarP(&config.HandleValidity, "handle-validity", "r", config.HandleValidity, "retrieval handle lifetime")
	fs.DurationVar(&config.StorageTimeout, "storage-timeout", config.StorageTimeout, "blob store operation deadline")
	fs.DurationVar(&config.LockTTL, "lock-ttl", config.LockTTL, "generation lock lifetime")

	fs.StringVarP(&config.S3User, "s3-user", "u", config.S3User, "S3 user")
	fs.StringVarP(&config.S3Password, "s3-password", "p", config.S3Password, "S3 password")
	fs.StringVarP(&config.S3Bucket, "s3-bucket", "b", config.S3Bucket, "S3 bucket")
	fs.StringVarP(&config.S3Region, "s3-region", "g", config.S3Region, "S3 region")
	fs.StringVarP(&config.S3BaseEndpoint, "s3-endpoint", "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVarP(&config.RedisURL, "redis-url", "R", config.RedisURL, "Redis URL")
	fs.StringSliceVarP(&config.KafkaBrokers, "kafka-brokers", "K", config.KafkaBrokers, "Kafka brokers")
	fs.StringVar(&config.KafkaGroupID, "kafka-group", config.KafkaGroupID, "Kafka consumer group")
	fs.StringVar(&config.KafkaPurchaseTopic, "kafka-purchase-topic", config.KafkaPurchaseTopic, "purchase topic")
	fs.StringVar(&config.KafkaDeliveryTopic, "kafka-delivery-topic", config.KafkaDeliveryTopic, "delivery events topic")

	fs.Int64Var(&config.MaxAccessCount, "max-access-count", config.MaxAccessCount, "excessive downloads threshold")
	fs.IntVar(&config.MaxDevices, "max-devices", config.MaxDevices, "multiple devices threshold")
	fs.DurationVar(&config.RapidWindow, "rapid-window", config.RapidWindow, "rapid downloads window")
	fs.IntVar(&config.RapidCount, "rapid-count", config.RapidCount, "rapid downloads threshold")
	fs.IntVar(&config.RecentLimit, "recent-limit", config.RecentLimit, "analytics recent feed size")

	fs.StringVar(&config.Copyright, "copyright", config.Copyright, "copyright line")
	fs.StringVarP(&config.CatalogFixture, "catalog-fixture", "f", config.CatalogFixture, "catalog fixture file")
	fs.StringVarP(&config.LogLevel, "log-level", "L", config.LogLevel, "log level")
	fs.StringVar(&config.TraceExporter, "trace-exporter", config.TraceExporter, "trace exporter: none or stdout")

	// consumed by parseFile
	fs.StringP("config", "c", "", "path to config file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}
}
