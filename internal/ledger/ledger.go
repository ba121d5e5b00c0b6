/**
 * @description
 * Collateral ledger boundary.
 * All market value transfer runs through this interface using the standard
 * allowance/approve-then-pull model: traders grant the market custody account
 * an allowance, the market pulls exact amounts via TransferFrom and pushes
 * payouts via Transfer. Implementations signal failure through the returned
 * error; callers treat every error as a hard transfer failure.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common
 */

package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// Ledger is a transferable-balance collateral token.
type Ledger interface {
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
}
