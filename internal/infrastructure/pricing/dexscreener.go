package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/providers"
)

var stablecoinSymbols = map[string]struct{}{
	"USDC": {},
	"USDT": {},
	"DAI":  {},
}

// pairData is one trading pair from the DEX aggregator response
type pairData struct {
	ChainID     string        `json:"chainId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   dexToken      `json:"baseToken"`
	QuoteToken  dexToken      `json:"quoteToken"`
	PriceUsd    string        `json:"priceUsd"`
	Liquidity   *dexLiquidity `json:"liquidity"`
}

type dexToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type dexLiquidity struct {
	Usd float64 `json:"usd"`
}

// pairsEnvelope covers the wrapped response shape some endpoints return
type pairsEnvelope struct {
	Pairs []pairData `json:"pairs"`
}

// Ensure DEXScreenerSource implements PriceSource
var _ providers.PriceSource = (*DEXScreenerSource)(nil)

// DEXScreenerSource is the primary price tier. It quotes tokens from DEX
// trading pairs, preferring stablecoin-quoted pairs with the deepest
// liquidity.
type DEXScreenerSource struct {
	http      *httpClient
	baseURL   string
	batchSize int
	logger    *zap.Logger
}

// NewDEXScreenerSource creates the primary DEX pair price source. A
// non-positive batch size falls back to the upstream's documented limit.
func NewDEXScreenerSource(rps float64, timeout time.Duration, batchSize int, logger *zap.Logger) *DEXScreenerSource {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &DEXScreenerSource{
		http:      newHTTPClient(rps, timeout, logger),
		baseURL:   "https://api.dexscreener.com",
		batchSize: batchSize,
		logger:    logger.Named("dexscreener"),
	}
}

func (s *DEXScreenerSource) Name() string { return "dexscreener" }

func (s *DEXScreenerSource) MaxBatchSize() int { return s.batchSize }

// GetPrices quotes up to MaxBatchSize token contracts in one request.
// Tokens without a usable pair are simply absent from the result.
func (s *DEXScreenerSource) GetPrices(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error) {
	if len(tokenAddresses) == 0 {
		return map[string]float64{}, nil
	}
	if len(tokenAddresses) > s.batchSize {
		return nil, fmt.Errorf("batch of %d exceeds max %d", len(tokenAddresses), s.batchSize)
	}

	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", s.baseURL, network, strings.Join(tokenAddresses, ","))
	body, err := s.http.getJSON(ctx, requestURL, nil)
	if err != nil {
		return nil, err
	}

	pairs, err := decodePairs(body)
	if err != nil {
		return nil, err
	}

	return pricesFromPairs(pairs, tokenAddresses), nil
}

// decodePairs handles both the direct-array and wrapped response shapes
func decodePairs(body []byte) ([]pairData, error) {
	var envelope pairsEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Pairs != nil {
		return envelope.Pairs, nil
	}

	var pairs []pairData
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode pairs response: %w", err)
	}
	return pairs, nil
}

// pricesFromPairs picks the best pair per requested token. Priority goes to
// stablecoin-quoted pairs with the highest liquidity, then highest liquidity
// overall.
func pricesFromPairs(pairs []pairData, tokenAddresses []string) map[string]float64 {
	byBase := make(map[string][]pairData)
	for _, p := range pairs {
		addr := strings.ToLower(p.BaseToken.Address)
		byBase[addr] = append(byBase[addr], p)
	}

	prices := make(map[string]float64)
	for _, addr := range tokenAddresses {
		lower := strings.ToLower(addr)
		priceStr := selectBestPrice(byBase[lower])
		if priceStr == "" {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			continue
		}
		prices[lower] = price
	}
	return prices
}

func selectBestPrice(pairs []pairData) string {
	var bestOverall, bestStablecoin *pairData

	for i := range pairs {
		pair := &pairs[i]
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		_, isStablecoin := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]
		if isStablecoin {
			if bestStablecoin == nil || liquidityUSD(pair) > liquidityUSD(bestStablecoin) {
				bestStablecoin = pair
			}
		}
		if bestOverall == nil || liquidityUSD(pair) > liquidityUSD(bestOverall) {
			bestOverall = pair
		}
	}

	if bestStablecoin != nil {
		return bestStablecoin.PriceUsd
	}
	if bestOverall != nil {
		return bestOverall.PriceUsd
	}
	return ""
}

func liquidityUSD(p *pairData) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}
