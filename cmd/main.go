/**
 * @description
 * This is the main entry point for the redemption-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/chainclient, pkg/ledgerclient, pkg/priceclient: Clients for the upstream services.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mintbridge/redemption-service/internal/api"
	"github.com/mintbridge/redemption-service/internal/app"
	"github.com/mintbridge/redemption-service/internal/config"
	"github.com/mintbridge/redemption-service/internal/store"
	"github.com/mintbridge/redemption-service/pkg/chainclient"
	"github.com/mintbridge/redemption-service/pkg/ledgerclient"
	"github.com/mintbridge/redemption-service/pkg/priceclient"
	"github.com/mintbridge/redemption-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.ReceivingAddress) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"receiving address must be configured\" env=RECEIVING_ADDRESS")
	}
	if strings.TrimSpace(cfg.TreasuryAccountID) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"treasury account must be configured\" env=TREASURY_ACCOUNT_ID")
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Printf("level=warn component=bootstrap msg=\"internal api key not configured; operator endpoints disabled\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting redemption-service\" port=%s ratio=%s target_decimals=%d",
		cfg.ServerPort, cfg.Ratio, cfg.TargetDecimals)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events. A broker
	// outage degrades to the no-op fallback rather than blocking redemptions.
	var events rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		events = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		events = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	upstreamTimeout := time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second

	// Initialize the clients for the source-chain inspection service and the
	// target-ledger API.
	chainClient := chainclient.NewClient(cfg.ChainAPIBaseURL, cfg.ChainAPIKey, upstreamTimeout)
	ledgerClient := ledgerclient.NewClient(cfg.LedgerAPIBaseURL, cfg.LedgerAPIKey, upstreamTimeout)

	// The price client is informational only; boot fine without it.
	var prices app.PriceSource
	if strings.TrimSpace(cfg.PriceAPIBaseURL) != "" {
		prices = priceclient.NewClient(cfg.PriceAPIBaseURL, upstreamTimeout)
	} else {
		log.Println("level=info component=bootstrap msg=\"price api not configured; reference price logging disabled\"")
	}

	var redisClient *redis.Client
	if cfg.RedeemRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; redemption rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; redemption rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; redemption rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	calculator, err := app.NewRewardCalculator(cfg.Ratio, cfg.TargetDecimals)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reward calculator init failed\" err=%v", err)
	}

	verifier := app.NewPaymentVerifier(chainClient, cfg.ReceivingAddress, upstreamTimeout)

	treasury := app.NewTreasury(
		ledgerClient,
		cfg.TreasuryAccountID,
		time.Duration(cfg.ReceiptPollIntervalMs)*time.Millisecond,
		time.Duration(cfg.ReceiptTimeoutSeconds)*time.Second,
	)

	// Initialize the core application service with its dependencies.
	bridgeService := app.NewService(repository, verifier, calculator, treasury, events, prices, app.ServiceConfig{
		ReconcileMinAge:          time.Duration(cfg.ReconcileMinAgeSeconds) * time.Second,
		ReconcileAbandonAge:      time.Duration(cfg.ReconcileAbandonAgeSeconds) * time.Second,
		PricePair:                cfg.PricePair,
		RedeemRateLimitPerMinute: cfg.RedeemRateLimitPerMinute,
	})
	if redisClient != nil {
		bridgeService.SetRedeemRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
	}

	// Background reconciliation sweeps in-flight reservations until shutdown.
	reconcileCtx, stopReconcile := context.WithCancel(context.Background())
	defer stopReconcile()
	go bridgeService.RunReconcileLoop(reconcileCtx, time.Duration(cfg.ReconcileIntervalSeconds)*time.Second)

	// Initialize the API handlers and router.
	bridgeHandlers := api.NewBridgeHandlers(bridgeService)
	router := api.BridgeRoutes(bridgeHandlers, cfg.InternalAPIKey, cfg.TrustProxyHeaders)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")
	stopReconcile()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
