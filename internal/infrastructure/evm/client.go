package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/config"
	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

// nativeSymbols maps a chain identifier to its native coin ticker
var nativeSymbols = map[string]string{
	"ethereum":  "ETH",
	"polygon":   "POL",
	"bsc":       "BNB",
	"arbitrum":  "ETH",
	"optimism":  "ETH",
	"base":      "ETH",
	"avalanche": "AVAX",
}

// NativeSymbol returns the native coin ticker for a chain, "ETH" if unknown
func NativeSymbol(chain string) string {
	if sym, ok := nativeSymbols[chain]; ok {
		return sym
	}
	return "ETH"
}

// Ensure Client implements BalanceProvider
var _ providers.BalanceProvider = (*Client)(nil)

// Client reads native and tracked ERC-20 balances for one chain over
// JSON-RPC. Token metadata is immutable on chain, so it is memoized for the
// client's lifetime; balances are fetched fresh on every call.
type Client struct {
	client *ethclient.Client
	cfg    config.EVMConfig
	chain  string
	tokens []common.Address
	logger *zap.Logger

	metaMu sync.RWMutex
	meta   map[common.Address]*TokenMetadata
}

// NewClient connects to the chain's JSON-RPC endpoint and tracks the given
// token contracts
func NewClient(cfg config.EVMConfig, chain string, tokenContracts []string, logger *zap.Logger) (*Client, error) {
	rpcURL, ok := cfg.RPCURLs[chain]
	if !ok {
		return nil, fmt.Errorf("no RPC URL configured for chain %s", chain)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", chain, err)
	}

	tokens := make([]common.Address, 0, len(tokenContracts))
	for _, t := range tokenContracts {
		if !common.IsHexAddress(t) {
			return nil, fmt.Errorf("invalid token contract %q for chain %s", t, chain)
		}
		tokens = append(tokens, common.HexToAddress(t))
	}

	logger.Info("Connected to EVM node",
		zap.String("chain", chain),
		zap.String("rpc_url", rpcURL),
		zap.Int("tracked_tokens", len(tokens)),
	)

	return &Client{
		client: client,
		cfg:    cfg,
		chain:  chain,
		tokens: tokens,
		logger: logger,
		meta:   make(map[common.Address]*TokenMetadata),
	}, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	c.client.Close()
}

// GetHoldings reads the native balance and every tracked token balance for
// the address. Zero token balances are omitted.
func (c *Client) GetHoldings(ctx context.Context, address, chain string) (*providers.Holdings, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address %q", entities.ErrProviderRejected, address)
	}
	owner := common.HexToAddress(address)

	native, err := c.nativeBalance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: native balance for %s: %v", entities.ErrProviderUnavailable, address, err)
	}

	holdings := &providers.Holdings{
		NativeAmount:   native,
		NativeSymbol:   NativeSymbol(chain),
		NativeDecimals: entities.DefaultTokenDecimals,
	}

	for _, token := range c.tokens {
		balance, err := c.tokenBalance(ctx, token, owner)
		if err != nil {
			// A malformed response means the contract is not a conforming
			// ERC-20; skip just that token and keep the rest of the wallet.
			if errors.Is(err, entities.ErrProviderRejected) {
				c.logger.Warn("Skipping token with malformed balance response",
					zap.String("chain", c.chain),
					zap.String("token", token.Hex()),
					zap.Error(err),
				)
				continue
			}
			return nil, fmt.Errorf("%w: balance of %s for %s: %v", entities.ErrProviderUnavailable, token.Hex(), address, err)
		}
		if balance.Sign() == 0 {
			continue
		}

		meta := c.metadata(ctx, token)
		decimals := int(meta.Decimals)
		holdings.Tokens = append(holdings.Tokens, providers.TokenBalance{
			TokenAddress: strings.ToLower(token.Hex()),
			Symbol:       meta.Symbol,
			Name:         meta.Name,
			Amount:       balance,
			Decimals:     &decimals,
		})
	}

	return holdings, nil
}

func (c *Client) nativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	var err error

	for i := 0; i <= c.cfg.MaxRetries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		balance, err = c.client.BalanceAt(callCtx, owner, nil)
		cancel()
		if err == nil {
			return balance, nil
		}

		c.logger.Warn("Failed to get native balance, retrying",
			zap.String("chain", c.chain),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.cfg.MaxRetries {
			time.Sleep(c.cfg.RetryDelay)
		}
	}

	return nil, fmt.Errorf("after %d retries: %w", c.cfg.MaxRetries, err)
}

func (c *Client) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSig...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)

	result, err := c.callContract(ctx, token, data)
	if err != nil {
		return nil, err
	}

	return decodeBalance(result)
}

// metadata returns cached metadata for the token, fetching once per contract.
// Fetch failures fall back to placeholder values and are not cached, so a
// later cycle can fill them in.
func (c *Client) metadata(ctx context.Context, token common.Address) *TokenMetadata {
	c.metaMu.RLock()
	cached, ok := c.meta[token]
	c.metaMu.RUnlock()
	if ok {
		return cached
	}

	meta, err := c.fetchMetadata(ctx, token)
	if err != nil {
		c.logger.Warn("Failed to fetch token metadata, using fallback",
			zap.String("chain", c.chain),
			zap.String("token", token.Hex()),
			zap.Error(err),
		)
		return &TokenMetadata{Name: "Unknown", Symbol: "UNK", Decimals: entities.DefaultTokenDecimals}
	}

	c.metaMu.Lock()
	c.meta[token] = meta
	c.metaMu.Unlock()

	return meta
}

// callContract performs an eth_call against the latest block with retries
func (c *Client) callContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}

	var result []byte
	var err error

	for i := 0; i <= c.cfg.MaxRetries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		result, err = c.client.CallContract(callCtx, msg, nil)
		cancel()
		if err == nil {
			return result, nil
		}

		if i < c.cfg.MaxRetries {
			time.Sleep(c.cfg.RetryDelay)
		}
	}

	return nil, fmt.Errorf("eth_call after %d retries: %w", c.cfg.MaxRetries, err)
}
