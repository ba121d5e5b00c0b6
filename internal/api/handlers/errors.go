/**
 * @description
 * Maps engine error kinds to HTTP responses.
 * Every engine failure surfaces with its kind so API callers and tests can
 * assert on the specific failure; slippage responses carry the computed and
 * minimum share counts.
 *
 * @dependencies
 * - internal/engine
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/registry"
)

func statusForKind(kind engine.Kind) int {
	switch kind {
	case engine.KindUnauthorized:
		return fiber.StatusForbidden
	case engine.KindMarketNotOpen,
		engine.KindDeadlinePassed,
		engine.KindNotResolved,
		engine.KindNotExpired,
		engine.KindAlreadyClaimed,
		engine.KindReentrantCall:
		return fiber.StatusConflict
	case engine.KindSlippage:
		return fiber.StatusUnprocessableEntity
	case engine.KindBelowMinBet,
		engine.KindInsufficientLiquidity,
		engine.KindZeroOutput,
		engine.KindNoWinningShares,
		engine.KindZeroPayout,
		engine.KindNothingToRefund,
		engine.KindNoFees,
		engine.KindTransferFailed,
		engine.KindInvalidParams:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError renders any error from the service/engine layer.
func respondError(c *fiber.Ctx, err error) error {
	if errors.Is(err, registry.ErrMarketNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Market not found"})
	}
	if errors.Is(err, registry.ErrUnauthorized) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	}

	var engErr *engine.Error
	if errors.As(err, &engErr) {
		body := fiber.Map{
			"error": engErr.Error(),
			"kind":  string(engErr.Kind),
		}
		if engErr.Kind == engine.KindSlippage && engErr.Computed != nil && engErr.Minimum != nil {
			body["computed"] = engErr.Computed.String()
			body["minimum"] = engErr.Minimum.String()
		}
		return c.Status(statusForKind(engErr.Kind)).JSON(body)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
