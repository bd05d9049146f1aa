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

// geckoTerminalNetworks maps chain identifiers to the terminal's network ids
var geckoTerminalNetworks = map[string]string{
	"ethereum":  "eth",
	"polygon":   "polygon_pos",
	"bsc":       "bsc",
	"arbitrum":  "arbitrum",
	"optimism":  "optimism",
	"base":      "base",
	"avalanche": "avax",
}

type tokenPriceResponse struct {
	Data struct {
		Attributes struct {
			TokenPrices map[string]string `json:"token_prices"`
		} `json:"attributes"`
	} `json:"data"`
}

// Ensure GeckoTerminalSource implements PriceSource
var _ providers.PriceSource = (*GeckoTerminalSource)(nil)

// GeckoTerminalSource is the secondary price tier, quoting tokens from
// on-chain pool data.
type GeckoTerminalSource struct {
	http    *httpClient
	baseURL string
	logger  *zap.Logger
}

// NewGeckoTerminalSource creates the secondary DEX pool price source
func NewGeckoTerminalSource(rps float64, timeout time.Duration, logger *zap.Logger) *GeckoTerminalSource {
	return &GeckoTerminalSource{
		http:    newHTTPClient(rps, timeout, logger),
		baseURL: "https://api.geckoterminal.com/api/v2",
		logger:  logger.Named("geckoterminal"),
	}
}

func (s *GeckoTerminalSource) Name() string { return "geckoterminal" }

// MaxBatchSize is the upstream's documented address limit per request
func (s *GeckoTerminalSource) MaxBatchSize() int { return 30 }

func (s *GeckoTerminalSource) GetPrices(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error) {
	if len(tokenAddresses) == 0 {
		return map[string]float64{}, nil
	}

	networkID, ok := geckoTerminalNetworks[network]
	if !ok {
		networkID = network
	}

	requestURL := fmt.Sprintf("%s/simple/networks/%s/token_price/%s",
		s.baseURL, networkID, strings.Join(tokenAddresses, ","))
	body, err := s.http.getJSON(ctx, requestURL, nil)
	if err != nil {
		return nil, err
	}

	var decoded tokenPriceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode token price response: %w", err)
	}

	prices := make(map[string]float64, len(decoded.Data.Attributes.TokenPrices))
	for addr, priceStr := range decoded.Data.Attributes.TokenPrices {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			continue
		}
		prices[strings.ToLower(addr)] = price
	}

	return prices, nil
}
