/**
 * @description
 * Configuration loader for the prediction market backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (Database URL) are missing outside dev mode.
 * - Engine limits (min bet, max fee, min seed) are protocol-wide and loaded here
 *   so every market created by the registry shares the same floor/ceiling.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	Collateral CollateralConfig
	Engine     EngineConfig
	Admin      AdminConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     string
	FeedPort string // WebSocket event feed listener (worker)
	Env      string // "development", "test" or "production"
	// DevTrustAccounts skips signature verification and trusts the X-Account
	// header. Never enabled outside development/test.
	DevTrustAccounts bool
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// CollateralConfig describes the collateral token backing all markets
type CollateralConfig struct {
	// Symbol/Decimals describe the in-process ledger token.
	Symbol   string
	Decimals int
	// ChainRPCURL + ChainTokenAddress enable the read-only on-chain balance
	// view. Both empty means chain reads are disabled.
	ChainRPCURL       string
	ChainTokenAddress string
}

// EngineConfig holds protocol-wide market engine limits
type EngineConfig struct {
	MinBet    int64 // smallest accepted trade, collateral base units
	MaxFeeBps int64 // upper bound on per-market fee at construction
	MinSeed   int64 // smallest per-side initial liquidity
}

// AdminConfig holds settings for the admin-only surface of the registry
type AdminConfig struct {
	// Address with delist/faucet rights, checked against the registry's stored authority.
	Address string
	// JWKSURL validates admin bearer tokens; empty disables the JWT check in dev.
	JWKSURL string
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod injects env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			FeedPort:         getEnv("FEED_PORT", "8081"),
			Env:              getEnv("GO_ENV", "development"),
			DevTrustAccounts: getEnvAsBool("DEV_TRUST_ACCOUNTS", false),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Collateral: CollateralConfig{
			Symbol:            getEnv("COLLATERAL_SYMBOL", "USDX"),
			Decimals:          getEnvAsInt("COLLATERAL_DECIMALS", 6),
			ChainRPCURL:       getEnv("COLLATERAL_CHAIN_RPC_URL", ""),
			ChainTokenAddress: sanitizeCredential(getEnv("COLLATERAL_CHAIN_TOKEN", "")),
		},
		Engine: EngineConfig{
			MinBet:    int64(getEnvAsInt("ENGINE_MIN_BET", 1)),
			MaxFeeBps: int64(getEnvAsInt("ENGINE_MAX_FEE_BPS", 1000)),
			MinSeed:   int64(getEnvAsInt("ENGINE_MIN_SEED", 100)),
		},
		Admin: AdminConfig{
			Address: sanitizeCredential(getEnv("ADMIN_ADDRESS", "")),
			JWKSURL: getEnv("ADMIN_JWKS_URL", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" && cfg.Server.Env == "production" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if cfg.Engine.MinBet <= 0 {
		return fmt.Errorf("ENGINE_MIN_BET must be positive")
	}
	if cfg.Engine.MaxFeeBps <= 0 || cfg.Engine.MaxFeeBps >= 10000 {
		return fmt.Errorf("ENGINE_MAX_FEE_BPS must be in (0, 10000)")
	}
	if cfg.Engine.MinSeed <= 0 {
		return fmt.Errorf("ENGINE_MIN_SEED must be positive")
	}
	if cfg.Server.DevTrustAccounts && cfg.Server.Env == "production" {
		return fmt.Errorf("DEV_TRUST_ACCOUNTS cannot be enabled in production")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as bool
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
