/**
 * @description
 * In-process collateral token backing local and test deployments.
 * Implements the full allowance model: TransferFrom(from, to, amount) spends
 * the allowance `from` granted to `to` (markets are approved by custody
 * address), so a market can only pull what a trader explicitly approved.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common
 */

package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is a mutex-guarded in-memory token.
type MemoryLedger struct {
	mu          sync.Mutex
	symbol      string
	decimals    int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(symbol string, decimals int) *MemoryLedger {
	return &MemoryLedger{
		symbol:      symbol,
		decimals:    decimals,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: new(big.Int),
	}
}

// Symbol returns the token symbol.
func (l *MemoryLedger) Symbol() string { return l.symbol }

// Decimals returns the token's decimal places.
func (l *MemoryLedger) Decimals() int { return l.decimals }

// TotalSupply returns the minted supply.
func (l *MemoryLedger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// Mint credits newly issued collateral to addr. Admin faucet only; the engine
// never mints.
func (l *MemoryLedger) Mint(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

// BalanceOf returns addr's balance.
func (l *MemoryLedger) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// Allowance returns what owner has approved spender to pull.
func (l *MemoryLedger) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inner, ok := l.allowances[owner]; ok {
		if a, ok := inner[spender]; ok {
			return new(big.Int).Set(a), nil
		}
	}
	return new(big.Int), nil
}

// Approve sets spender's allowance from owner to exactly amount.
func (l *MemoryLedger) Approve(_ context.Context, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	inner, ok := l.allowances[owner]
	if !ok {
		inner = make(map[common.Address]*big.Int)
		l.allowances[owner] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from -> to.
func (l *MemoryLedger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount from -> to, spending the allowance `from` granted
// to `to`.
func (l *MemoryLedger) TransferFrom(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	inner := l.allowances[from]
	allowance := inner[to]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s approved %s for %s", ErrInsufficientAllowance, from.Hex(), balanceString(allowance), to.Hex())
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (l *MemoryLedger) move(from, to common.Address, amount *big.Int) error {
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), balanceString(balance), amount)
	}
	balance.Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

func (l *MemoryLedger) credit(addr common.Address, amount *big.Int) {
	if b, ok := l.balances[addr]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[addr] = new(big.Int).Set(amount)
}

func balanceString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
