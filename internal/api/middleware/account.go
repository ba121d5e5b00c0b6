/**
 * @description
 * Trader identity middleware.
 * Mutating market endpoints identify the caller by Ethereum-style address:
 * the client sends X-Account plus X-Signature, a personal-sign of the raw
 * request body, and the middleware recovers the signer and checks it matches.
 * GET requests sign the request path instead of the (empty) body.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto: signature recovery
 * - github.com/ethereum/go-ethereum/accounts: personal-sign text hash
 * - github.com/gofiber/fiber/v2
 *
 * @notes
 * - DEV_TRUST_ACCOUNTS trusts X-Account alone; config refuses that flag in
 *   production.
 */

package middleware

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"

	"github.com/vjbhandari61/prediction-market/internal/config"
)

const (
	headerAccount   = "X-Account"
	headerSignature = "X-Signature"

	localsAccountKey = "account"
)

// RequireAccount authenticates the calling address.
func RequireAccount(cfg *config.Config) fiber.Handler {
	trust := cfg.Server.DevTrustAccounts

	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(headerAccount))
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing X-Account header"})
		}
		if !common.IsHexAddress(raw) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "X-Account is not a valid address"})
		}
		account := common.HexToAddress(raw)

		if !trust {
			sigHex := strings.TrimSpace(c.Get(headerSignature))
			if sigHex == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing X-Signature header"})
			}
			recovered, err := recoverSigner(signedPayload(c), sigHex)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature: " + err.Error()})
			}
			if recovered != account {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Signature does not match account",
				})
			}
		}

		c.Locals(localsAccountKey, account)
		return c.Next()
	}
}

// signedPayload returns the bytes the client is expected to have signed.
func signedPayload(c *fiber.Ctx) []byte {
	if body := c.Body(); len(body) > 0 {
		return body
	}
	return []byte(c.OriginalURL())
}

// recoverSigner recovers the address from a personal-sign signature over
// payload.
func recoverSigner(payload []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}

	// Wallets return V as 27/28; recovery expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte{}, sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(payload), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Account returns the authenticated caller address from context.
func Account(c *fiber.Ctx) (common.Address, error) {
	addr, ok := c.Locals(localsAccountKey).(common.Address)
	if !ok {
		return common.Address{}, errors.New("account not found in context")
	}
	return addr, nil
}
