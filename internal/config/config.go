/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings. The
 * configuration object is constructed once at startup and passed explicitly to
 * each component; nothing reads ambient state after boot.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/shopspring/decimal: Validation of the collateralization ratio.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the redemption-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	ChainAPIBaseURL string `mapstructure:"CHAIN_API_BASE_URL"`
	ChainAPIKey     string `mapstructure:"CHAIN_API_KEY"`

	LedgerAPIBaseURL  string `mapstructure:"LEDGER_API_BASE_URL"`
	LedgerAPIKey      string `mapstructure:"LEDGER_API_KEY"`
	TreasuryAccountID string `mapstructure:"TREASURY_ACCOUNT_ID"`

	ReceivingAddress string `mapstructure:"RECEIVING_ADDRESS"`
	CollateralRatio  string `mapstructure:"COLLATERAL_RATIO"`
	TargetDecimals   int    `mapstructure:"TARGET_DECIMALS"`

	PriceAPIBaseURL string `mapstructure:"PRICE_API_BASE_URL"`
	PricePair       string `mapstructure:"PRICE_PAIR"`

	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	// TrustProxyHeaders enables forwarding-header resolution of the client
	// address. Only set when a trusted proxy fronts the service.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`

	UpstreamTimeoutSeconds     int `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`
	ReceiptPollIntervalMs      int `mapstructure:"RECEIPT_POLL_INTERVAL_MS"`
	ReceiptTimeoutSeconds      int `mapstructure:"RECEIPT_TIMEOUT_SECONDS"`
	ReconcileIntervalSeconds   int `mapstructure:"RECONCILE_INTERVAL_SECONDS"`
	ReconcileMinAgeSeconds     int `mapstructure:"RECONCILE_MIN_AGE_SECONDS"`
	ReconcileAbandonAgeSeconds int `mapstructure:"RECONCILE_ABANDON_AGE_SECONDS"`
	RedeemRateLimitPerMinute   int `mapstructure:"REDEEM_RATE_LIMIT_PER_MINUTE"`

	// Ratio is the parsed, validated collateralization ratio.
	Ratio decimal.Decimal `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "bridge:rate_limit")
	viper.SetDefault("COLLATERAL_RATIO", "2")
	viper.SetDefault("TARGET_DECIMALS", 8)
	viper.SetDefault("PRICE_PAIR", "BTC-USD")
	viper.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 15)
	viper.SetDefault("RECEIPT_POLL_INTERVAL_MS", 500)
	viper.SetDefault("RECEIPT_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RECONCILE_INTERVAL_SECONDS", 60)
	viper.SetDefault("RECONCILE_MIN_AGE_SECONDS", 120)
	viper.SetDefault("RECONCILE_ABANDON_AGE_SECONDS", 1200)
	viper.SetDefault("REDEEM_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("TRUST_PROXY_HEADERS", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CHAIN_API_BASE_URL")
	_ = viper.BindEnv("CHAIN_API_KEY")
	_ = viper.BindEnv("LEDGER_API_BASE_URL")
	_ = viper.BindEnv("LEDGER_API_KEY")
	_ = viper.BindEnv("TREASURY_ACCOUNT_ID")
	_ = viper.BindEnv("RECEIVING_ADDRESS")
	_ = viper.BindEnv("COLLATERAL_RATIO")
	_ = viper.BindEnv("TARGET_DECIMALS")
	_ = viper.BindEnv("PRICE_API_BASE_URL")
	_ = viper.BindEnv("PRICE_PAIR")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "REDEMPTION_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("UPSTREAM_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RECEIPT_POLL_INTERVAL_MS")
	_ = viper.BindEnv("RECEIPT_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RECONCILE_INTERVAL_SECONDS")
	_ = viper.BindEnv("RECONCILE_MIN_AGE_SECONDS")
	_ = viper.BindEnv("RECONCILE_ABANDON_AGE_SECONDS")
	_ = viper.BindEnv("REDEEM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TRUST_PROXY_HEADERS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("REDEMPTION_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "bridge:rate_limit"
	}
	config.ReceivingAddress = strings.TrimSpace(config.ReceivingAddress)
	config.TreasuryAccountID = strings.TrimSpace(config.TreasuryAccountID)

	// The collateralization ratio is load-bearing for every reward this
	// service will ever compute; refuse to start with an invalid one.
	ratio, ratioErr := decimal.NewFromString(strings.TrimSpace(config.CollateralRatio))
	if ratioErr != nil {
		return config, fmt.Errorf("invalid COLLATERAL_RATIO %q: %w", config.CollateralRatio, ratioErr)
	}
	if !ratio.IsPositive() {
		return config, fmt.Errorf("COLLATERAL_RATIO must be positive, got %q", config.CollateralRatio)
	}
	config.Ratio = ratio

	if config.TargetDecimals < 0 || config.TargetDecimals > 18 {
		log.Printf("level=warn component=config msg=\"TARGET_DECIMALS out of range; using 8\" value=%d", config.TargetDecimals)
		config.TargetDecimals = 8
	}
	if config.UpstreamTimeoutSeconds <= 0 {
		config.UpstreamTimeoutSeconds = 15
	}
	if config.ReceiptPollIntervalMs <= 0 {
		config.ReceiptPollIntervalMs = 500
	}
	if config.ReceiptTimeoutSeconds <= 0 {
		config.ReceiptTimeoutSeconds = 30
	}
	if config.ReconcileIntervalSeconds <= 0 {
		config.ReconcileIntervalSeconds = 60
	}
	if config.ReconcileMinAgeSeconds <= 0 {
		config.ReconcileMinAgeSeconds = 120
	}
	if config.ReconcileAbandonAgeSeconds <= config.ReconcileMinAgeSeconds {
		config.ReconcileAbandonAgeSeconds = config.ReconcileMinAgeSeconds * 10
	}
	if config.RedeemRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative redeem rate limit configured; disabling\" value=%d", config.RedeemRateLimitPerMinute)
		config.RedeemRateLimitPerMinute = 0
	}

	return
}
