package evm

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// TokenMetadata holds ERC-20 token metadata
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals int
}

// ERC-20 function selectors (first 4 bytes of keccak256 hash)
var (
	// name() -> 0x06fdde03
	nameSig = common.FromHex("0x06fdde03")
	// symbol() -> 0x95d89b41
	symbolSig = common.FromHex("0x95d89b41")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
	// balanceOf(address) -> 0x70a08231
	balanceOfSig = common.FromHex("0x70a08231")
)

// fetchMetadata reads name, symbol and decimals via eth_call. Individual
// field failures fall back to placeholders; only a full failure errors.
func (c *Client) fetchMetadata(ctx context.Context, token common.Address) (*TokenMetadata, error) {
	meta := &TokenMetadata{Name: "Unknown", Symbol: "UNK", Decimals: 18}
	failed := 0

	if result, err := c.callContract(ctx, token, nameSig); err != nil {
		failed++
	} else if name, err := decodeStringOrBytes32(result); err == nil {
		meta.Name = name
	}

	if result, err := c.callContract(ctx, token, symbolSig); err != nil {
		failed++
	} else if symbol, err := decodeStringOrBytes32(result); err == nil {
		meta.Symbol = symbol
	}

	if result, err := c.callContract(ctx, token, decimalsSig); err != nil {
		failed++
	} else if decimals, err := decodeDecimals(result); err == nil {
		meta.Decimals = decimals
	}

	if failed == 3 {
		return nil, fmt.Errorf("all metadata calls failed for %s", token.Hex())
	}

	return meta, nil
}

// decodeBalance decodes a balanceOf(address) response. A short result means
// the contract does not implement the call; classified as a rejected response
// so callers can skip the token rather than fail the whole wallet.
func decodeBalance(data []byte) (*big.Int, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("%w: balanceOf response of %d bytes", entities.ErrProviderRejected, len(data))
	}
	return new(big.Int).SetBytes(data[:32]), nil
}

// decodeDecimals decodes a decimals() response. The value is a uint8 padded
// to 32 bytes; the last byte carries it.
func decodeDecimals(data []byte) (int, error) {
	if len(data) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(data))
	}
	return int(data[31]), nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}

	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	// Try to decode as ABI-encoded string first
	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.Uint64() == 32 {
			length := new(big.Int).SetBytes(data[32:64])
			strLen := int(length.Uint64())

			if strLen == 0 {
				return "", nil
			}

			if len(data) >= 64+strLen {
				strData := data[64 : 64+strLen]
				return strings.TrimRight(string(strData), "\x00"), nil
			}
		}
	}

	// Fallback: treat as bytes32, trimming trailing null bytes
	result := bytes.TrimRight(data[:32], "\x00")

	if isPrintableASCII(result) {
		return string(result), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}
