package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"signature-service/internal/auth"
	"signature-service/internal/document"
	envelopeMetrics "signature-service/internal/envelope/metrics"
	envelopeService "signature-service/internal/envelope/service"
	envelopeStore "signature-service/internal/envelope/store"
	invitationMetrics "signature-service/internal/invitation/metrics"
	invitationService "signature-service/internal/invitation/service"
	invitationStore "signature-service/internal/invitation/store"
	outboxMetrics "signature-service/internal/outbox/metrics"
	outboxPublisher "signature-service/internal/outbox/publisher"
	outboxRelay "signature-service/internal/outbox/relay"
	outboxService "signature-service/internal/outbox/service"
	outboxStore "signature-service/internal/outbox/store"
	ratelimitMetrics "signature-service/internal/ratelimit/metrics"
	ratelimitMiddleware "signature-service/internal/ratelimit/middleware"
	ratelimitModels "signature-service/internal/ratelimit/models"
	"signature-service/internal/ratelimit/store/bucket"
	"signature-service/internal/platform/config"
	"signature-service/internal/platform/metrics"
	"signature-service/internal/platform/postgres"
	"signature-service/internal/platform/redis"
	"signature-service/internal/platform/revocation"
	"signature-service/internal/sealing"
	"signature-service/internal/sweeper"
	auditMemory "signature-service/pkg/platform/audit/store/memory"
	auditPostgres "signature-service/pkg/platform/audit/store/postgres"
	"signature-service/pkg/platform/circuit"
	authmw "signature-service/pkg/platform/middleware/auth"
	"signature-service/pkg/platform/tx"
	"signature-service/pkg/requestcontext"
)

const kafkaTopicPartitions = 6

// outboxRows is satisfied by both outbox stores.
type outboxRows interface {
	envelopeService.Outbox
	outboxRelay.Store
	outboxService.Store
}

// app holds the wired components main needs to serve and shut down.
type app struct {
	envelopes   *envelopeService.Service
	outbox      *outboxService.Service
	relay       *outboxRelay.Relay
	sweeper     *sweeper.Sweeper
	jwt         *auth.JWTService
	revocations authmw.TokenRevocationChecker
	httpMetrics *metrics.Metrics
	rateLimit   *ratelimitMiddleware.Middleware
	localBlobs  *document.InMemoryStore
	db          *sql.DB
	redis       *redis.Client
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// health pings the backing stores that are configured.
func (a *app) health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()
	a.httpMetrics = metrics.New(reg)

	var (
		envelopes   envelopeService.Store
		invitations invitationService.Store
		outbox      outboxRows
		auditTrail  envelopeService.AuditTrail
		runner      tx.Runner
	)
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		envelopes = envelopeStore.NewInMemory()
		invitations = invitationStore.NewInMemory()
		outbox = outboxStore.NewInMemory()
		auditTrail = auditMemory.NewInMemoryStore()
		runner = tx.NewMemoryRunner()
	} else {
		if a.db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return nil, err
		}
		db := a.db
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err = postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		envelopes = envelopeStore.NewPostgres(db)
		invitations = invitationStore.NewPostgres(db)
		outbox = outboxStore.NewPostgres(db)
		auditTrail = auditPostgres.New(db)
		runner = tx.NewPostgresRunner(db, cfg.Database.TxTimeout)
	}

	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	var jobs []sweeper.Job
	var invitationRevocations invitationService.RevocationList
	var buckets ratelimitMiddleware.BucketStore
	switch {
	case a.redis != nil:
		client := a.redis
		a.closers = append(a.closers, func() { _ = client.Close() })
		invitationRevocations = revocation.NewRedis(client.Client, revocation.WithKeyPrefix(revocation.InvitationPrefix))
		a.revocations = revocation.NewRedis(client.Client, revocation.WithKeyPrefix(revocation.AccessTokenPrefix))
		buckets = bucket.NewRedis(client.Client)
	case a.db != nil:
		list := revocation.NewPostgres(a.db, revocation.WithPrefix(revocation.InvitationPrefix))
		invitationRevocations = list
		jobs = append(jobs, sweeper.Job{Name: "revocation_cleanup", Run: func(ctx context.Context, _ time.Time) (int, error) {
			return list.DeleteExpired(ctx)
		}})
	default:
		invitationRevocations = revocation.NewInMemory(time.Now)
	}
	if a.revocations == nil {
		log.Warn("REDIS_URL not set; owner token revocations are not checked")
	}
	if buckets == nil {
		local := bucket.New()
		buckets = local
		jobs = append(jobs, sweeper.Job{Name: "ratelimit_sweep", Run: local.Sweep})
	}
	a.rateLimit = ratelimitMiddleware.New(buckets,
		ratelimitMiddleware.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitMiddleware.WithLimit(ratelimitModels.ClassInvitation, ratelimitModels.Limit{
			RequestsPerWindow: cfg.RateLimit.InvitationRequests,
			Window:            cfg.RateLimit.InvitationWindow,
		}),
		ratelimitMiddleware.WithLogger(log),
		ratelimitMiddleware.WithMetrics(ratelimitMetrics.New(reg)),
		ratelimitMiddleware.WithBreaker(circuit.New("ratelimit-buckets")),
	)

	invitationSvc := invitationService.New(invitations,
		invitationService.WithLogger(log),
		invitationService.WithMetrics(invitationMetrics.New(reg)),
		invitationService.WithRevocationList(invitationRevocations),
		invitationService.WithBreaker(circuit.New("invitation-revocations")),
		invitationService.WithTTL(cfg.Invitation.TTL),
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var blobs document.BlobStore
	if cfg.AWS.DocumentsBucket != "" {
		blobs = document.NewS3(s3.NewFromConfig(awsCfg), cfg.AWS.DocumentsBucket)
	} else {
		log.Warn("DOCUMENTS_BUCKET not set; documents are kept in memory")
		a.localBlobs = document.NewInMemory(localBaseURL(cfg.Server.Addr) + "/blobs")
		blobs = a.localBlobs
	}

	var sealer sealing.Sealer
	if cfg.AWS.KMSKeyID != "" {
		sealer = sealing.NewKMS(kms.NewFromConfig(awsCfg), cfg.AWS.KMSKeyID)
	} else {
		log.Warn("KMS_SIGNING_KEY_ID not set; sealing with a local HMAC key")
		if sealer, err = sealing.NewHMAC([]byte(cfg.AWS.LocalSealSecret), "local-hmac"); err != nil {
			return nil, err
		}
	}

	pub, err := a.publisher(ctx, cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}

	a.envelopes = envelopeService.New(envelopes, outbox, invitationSvc, blobs, sealer,
		envelopeService.WithLogger(log),
		envelopeService.WithMetrics(envelopeMetrics.New(reg)),
		envelopeService.WithTxRunner(runner),
		envelopeService.WithAuditTrail(auditTrail),
		envelopeService.WithURLTTL(cfg.AWS.PresignTTL),
	)

	a.relay = outboxRelay.New(outbox, pub, outboxRelay.Config{
		WorkerID:           cfg.Outbox.WorkerID,
		PollInterval:       cfg.Outbox.PollInterval,
		BatchLimit:         cfg.Outbox.BatchLimit,
		MaxPublishAttempts: cfg.Outbox.MaxPublishAttempts,
		MaxAttempts:        cfg.Outbox.MaxAttempts,
		LeaseTTL:           cfg.Outbox.LeaseTTL,
	},
		outboxRelay.WithLogger(log),
		outboxRelay.WithMetrics(outboxMetrics.New(reg)),
	)
	a.outbox = outboxService.New(outbox, a.relay, outboxService.WithLogger(log))

	a.jwt = auth.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	jobs = append([]sweeper.Job{
		{Name: "envelope_expiry", Run: func(ctx context.Context, now time.Time) (int, error) {
			return a.envelopes.ExpireOverdue(ctx, now, 0)
		}},
		{Name: "invitation_cleanup", Run: invitationSvc.DeleteExpired},
		{Name: "outbox_prune", Run: func(ctx context.Context, now time.Time) (int, error) {
			return a.outbox.Prune(requestcontext.WithTime(ctx, now), cfg.Outbox.Retention)
		}},
	}, jobs...)
	a.sweeper = sweeper.New(cfg.Server.SweepInterval, jobs,
		sweeper.WithLogger(log),
		sweeper.WithRegisterer(reg),
	)
	return a, nil
}

// publisher builds the outbox sink selected by OUTBOX_PUBLISHER.
func (a *app) publisher(ctx context.Context, cfg config.Config, awsCfg aws.Config, log *slog.Logger) (outboxRelay.Publisher, error) {
	switch cfg.Outbox.Publisher {
	case config.PublisherEventBridge:
		return outboxPublisher.NewEventBridge(eventbridge.NewFromConfig(awsCfg), cfg.AWS.EventBusName, cfg.AWS.EventSource), nil
	case config.PublisherKafka:
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		if err := outboxPublisher.EnsureTopic(ctx, client, cfg.Kafka.Topic, kafkaTopicPartitions, -1); err != nil {
			return nil, err
		}
		return outboxPublisher.NewKafka(client, cfg.Kafka.Topic), nil
	default:
		return outboxPublisher.NewLog(log), nil
	}
}

func localBaseURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
