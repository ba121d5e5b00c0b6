/**
 * @description
 * Read-only on-chain view of the collateral token.
 * Lets the API report a wallet's real ERC20 balance next to its in-process
 * ledger balance when a chain RPC and token address are configured. Balances
 * are cached with a short TTL and a stale-fallback window so a flaky RPC
 * doesn't take the balances endpoint down.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 * - internal/config
 */

package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vjbhandari61/prediction-market/internal/config"
)

const (
	balanceCacheTTL        = 30 * time.Second
	balanceStaleFallback   = 5 * time.Minute
	balanceAttemptCooldown = 15 * time.Second
)

// ERC20 ABI for balanceOf
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// ChainReader reads collateral balances from an ERC20 token on chain.
type ChainReader struct {
	client       *ethclient.Client
	tokenAddress common.Address
	decimals     int
	cacheMu      sync.Mutex
	balanceCache map[string]cachedBalance
}

type cachedBalance struct {
	value       *big.Int
	expiresAt   time.Time
	lastAttempt time.Time
}

// NewChainReader dials the configured RPC. Returns (nil, nil) when chain reads
// are not configured.
func NewChainReader(cfg *config.Config) (*ChainReader, error) {
	rpcURL := strings.TrimSpace(cfg.Collateral.ChainRPCURL)
	token := strings.TrimSpace(cfg.Collateral.ChainTokenAddress)
	if rpcURL == "" || token == "" {
		return nil, nil
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	return &ChainReader{
		client:       client,
		tokenAddress: common.HexToAddress(token),
		decimals:     cfg.Collateral.Decimals,
		balanceCache: make(map[string]cachedBalance),
	}, nil
}

// BalanceOf returns the on-chain token balance for address.
func (r *ChainReader) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("invalid address")
	}

	cacheKey := strings.ToLower(address.Hex())
	if cached := r.getCachedBalance(cacheKey, false); cached != nil {
		return cached, nil
	}

	if r.shouldBackoff(cacheKey) {
		if cached := r.getCachedBalance(cacheKey, true); cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("balance fetch throttled")
	}

	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	parsedABI, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", address)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	callMsg := ethereum.CallMsg{
		To:   &r.tokenAddress,
		Data: data,
	}

	r.markAttempt(cacheKey)
	result, err := r.client.CallContract(ctx, callMsg, nil)
	if err != nil {
		if cached := r.getCachedBalance(cacheKey, true); cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}

	results, err := parsedABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balance result: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results returned from balanceOf call")
	}

	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to decode balance as *big.Int")
	}

	r.setCachedBalance(cacheKey, balance)
	return balance, nil
}

func (r *ChainReader) getCachedBalance(key string, allowStale bool) *big.Int {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	entry, ok := r.balanceCache[key]
	if !ok || entry.value == nil {
		return nil
	}

	now := time.Now()
	if now.Before(entry.expiresAt) {
		return new(big.Int).Set(entry.value)
	}
	if allowStale && now.Before(entry.expiresAt.Add(balanceStaleFallback)) {
		return new(big.Int).Set(entry.value)
	}

	return nil
}

func (r *ChainReader) setCachedBalance(key string, value *big.Int) {
	if value == nil {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	entry := r.balanceCache[key]
	entry.value = new(big.Int).Set(value)
	entry.expiresAt = time.Now().Add(balanceCacheTTL)
	r.balanceCache[key] = entry
}

func (r *ChainReader) shouldBackoff(key string) bool {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	entry, ok := r.balanceCache[key]
	if !ok || entry.lastAttempt.IsZero() {
		return false
	}
	return time.Since(entry.lastAttempt) < balanceAttemptCooldown
}

func (r *ChainReader) markAttempt(key string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	entry := r.balanceCache[key]
	entry.lastAttempt = time.Now()
	r.balanceCache[key] = entry
}

// FormatBalance renders a base-unit balance with two decimal places.
func (r *ChainReader) FormatBalance(balance *big.Int) string {
	return FormatUnits(balance, r.decimals)
}

// FormatUnits renders a base-unit amount with two decimal places for display.
func FormatUnits(balance *big.Int, decimals int) string {
	if balance == nil {
		return "0.00"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient := new(big.Int).Div(balance, divisor)
	remainder := new(big.Int).Mod(balance, divisor)

	remainderStr := remainder.String()
	for len(remainderStr) < decimals {
		remainderStr = "0" + remainderStr
	}
	if len(remainderStr) > 2 {
		remainderStr = remainderStr[:2]
	}

	return fmt.Sprintf("%s.%s", quotient.String(), remainderStr)
}

// Close closes the chain client connection.
func (r *ChainReader) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
