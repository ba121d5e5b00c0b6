/**
 * @description
 * Admin authentication middleware using JWTs.
 * Validates Bearer tokens against a configured JWKS endpoint. Guards the
 * admin-only surface (faucet, delist); trader identity is handled separately
 * by the account middleware.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - github.com/golang-jwt/jwt/v5: JWT parsing
 * - github.com/MicahParks/keyfunc/v2: JWKS fetching and caching
 *
 * @notes
 * - Requires ADMIN_JWKS_URL to be set in configuration.
 * - In development/test without a JWKS URL the check is skipped so local
 *   stacks work without an identity provider; production fails closed.
 */

package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/logger"
)

// AuthMiddlewareConfig holds the JWKS function
type AuthMiddlewareConfig struct {
	JWKS      *keyfunc.JWKS
	DevBypass bool
}

var mwConfig *AuthMiddlewareConfig

// InitAuthMiddleware initializes the JWKS cache. Should be called at startup.
func InitAuthMiddleware(cfg *config.Config) error {
	if cfg.Admin.JWKSURL == "" {
		if cfg.Server.Env == "production" {
			return errors.New("ADMIN_JWKS_URL is required in production")
		}
		logger.Info("⚠️ ADMIN_JWKS_URL is empty; admin JWT check disabled for %s", cfg.Server.Env)
		mwConfig = &AuthMiddlewareConfig{DevBypass: true}
		return nil
	}

	// Refresh the JWKS every hour.
	jwks, err := keyfunc.Get(cfg.Admin.JWKSURL, keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			logger.Error("There was an error with the JWKS refresh: %v", err)
		},
	})
	if err != nil {
		return err
	}

	mwConfig = &AuthMiddlewareConfig{JWKS: jwks}
	logger.Info("✅ Admin auth middleware initialized with JWKS")
	return nil
}

// Protected guards admin routes requiring a valid bearer token.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mwConfig == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Auth configuration not initialized",
			})
		}
		if mwConfig.DevBypass {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token format"})
		}

		token, err := jwt.Parse(tokenString, mwConfig.JWKS.Keyfunc)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token: " + err.Error()})
		}
		if !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing subject"})
		}

		c.Locals("admin_subject", sub)

		return c.Next()
	}
}
