package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	platformstrings "signature-service/pkg/platform/strings"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server     Server
	Auth       Auth
	Database   Database
	Redis      RedisConfig
	AWS        AWS
	Kafka      Kafka
	Outbox     Outbox
	Invitation Invitation
	RateLimit  RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"SIGNATURE_SERVICE_ADDR" envDefault:":8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	RegulatedMode   bool          `env:"REGULATED_MODE" envDefault:"false"`
	AdminToken      string        `env:"ADMIN_API_TOKEN"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SweepInterval   time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1m"`
	RunRelay        bool          `env:"RUN_OUTBOX_RELAY" envDefault:"true"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For. Enable
	// only behind a load balancer that overwrites the header.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// Auth configures validation of owner access tokens minted by the auth-service.
type Auth struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"auth-service"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"signature-service"`
}

// Database configures PostgreSQL. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DB_TX_TIMEOUT" envDefault:"5s"`
}

// RedisConfig configures the shared Redis used for revocation lists.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// AWS configures S3 document storage, EventBridge publishing and KMS sealing.
type AWS struct {
	Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	DocumentsBucket string        `env:"DOCUMENTS_BUCKET"`
	PresignTTL      time.Duration `env:"DOCUMENT_URL_TTL" envDefault:"15m"`
	EventBusName    string        `env:"EVENT_BUS_NAME"`
	EventSource     string        `env:"EVENT_SOURCE" envDefault:"signature-service"`
	KMSKeyID        string        `env:"KMS_SIGNING_KEY_ID"`
	LocalSealSecret string        `env:"LOCAL_SEAL_SECRET" envDefault:"dev-seal-secret-change-in-production"`
}

// Kafka configures the alternative outbox sink.
type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"signature-events"`
}

// Outbox tunes the relay.
type Outbox struct {
	Publisher          string        `env:"OUTBOX_PUBLISHER" envDefault:"log"`
	PollInterval       time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	BatchLimit         int           `env:"OUTBOX_BATCH_LIMIT" envDefault:"100"`
	MaxPublishAttempts int           `env:"OUTBOX_MAX_PUBLISH_ATTEMPTS" envDefault:"3"`
	MaxAttempts        int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
	LeaseTTL           time.Duration `env:"OUTBOX_LEASE_TTL" envDefault:"30s"`
	WorkerID           string        `env:"OUTBOX_WORKER_ID"`
	Retention          time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`
}

// Invitation tunes invitation token issuance.
type Invitation struct {
	TTL time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
}

// RateLimit bounds unauthenticated invitation traffic per client IP.
type RateLimit struct {
	Disabled           bool          `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
	InvitationRequests int           `env:"RATE_LIMIT_INVITATION_REQUESTS" envDefault:"30"`
	InvitationWindow   time.Duration `env:"RATE_LIMIT_INVITATION_WINDOW" envDefault:"1m"`
}

// Publisher kinds accepted by Outbox.Publisher.
const (
	PublisherLog         = "log"
	PublisherEventBridge = "eventbridge"
	PublisherKafka       = "kafka"
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that would fail later at first use.
func (c Config) Validate() error {
	switch c.Outbox.Publisher {
	case PublisherLog:
	case PublisherEventBridge:
		if c.AWS.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for the eventbridge publisher")
		}
	case PublisherKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka publisher")
		}
	default:
		return fmt.Errorf("unknown OUTBOX_PUBLISHER %q", c.Outbox.Publisher)
	}
	if c.Outbox.BatchLimit <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_LIMIT must be positive")
	}
	if !c.RateLimit.Disabled && (c.RateLimit.InvitationRequests <= 0 || c.RateLimit.InvitationWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_INVITATION_REQUESTS and RATE_LIMIT_INVITATION_WINDOW must be positive")
	}
	if c.Invitation.TTL <= 0 {
		return fmt.Errorf("INVITATION_TTL must be positive")
	}
	if c.AWS.KMSKeyID == "" && len(c.AWS.LocalSealSecret) < 32 {
		return fmt.Errorf("LOCAL_SEAL_SECRET must be at least 32 bytes")
	}
	if c.Server.RegulatedMode && c.AWS.KMSKeyID == "" {
		return fmt.Errorf("KMS_SIGNING_KEY_ID is required in regulated mode")
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
