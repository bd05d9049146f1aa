package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

// coinGeckoPlatforms maps chain identifiers to the market API's platform ids
var coinGeckoPlatforms = map[string]string{
	"ethereum":  "ethereum",
	"polygon":   "polygon-pos",
	"bsc":       "binance-smart-chain",
	"arbitrum":  "arbitrum-one",
	"optimism":  "optimistic-ethereum",
	"base":      "base",
	"avalanche": "avalanche",
}

// nativeCoinIDs maps native coin tickers to the market API's coin ids
var nativeCoinIDs = map[string]string{
	"ETH":  "ethereum",
	"POL":  "polygon-ecosystem-token",
	"BNB":  "binancecoin",
	"AVAX": "avalanche-2",
}

// Ensure CoinGeckoSource implements both price interfaces
var (
	_ providers.PriceSource       = (*CoinGeckoSource)(nil)
	_ providers.NativePriceSource = (*CoinGeckoSource)(nil)
)

// CoinGeckoSource is the tertiary price tier, quoting by contract address
// against the market data API. It also serves the dedicated ticker-based
// lookup for native coins, which runs outside the tier chain.
type CoinGeckoSource struct {
	http      *httpClient
	baseURL   string
	apiKey    string
	batchSize int
	logger    *zap.Logger
}

// NewCoinGeckoSource creates the market-data price source. A non-positive
// batch size falls back to a safe per-request address limit.
func NewCoinGeckoSource(rps float64, timeout time.Duration, batchSize int, apiKey string, logger *zap.Logger) *CoinGeckoSource {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CoinGeckoSource{
		http:      newHTTPClient(rps, timeout, logger),
		baseURL:   "https://api.coingecko.com/api/v3",
		apiKey:    apiKey,
		batchSize: batchSize,
		logger:    logger.Named("coingecko"),
	}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

func (s *CoinGeckoSource) MaxBatchSize() int { return s.batchSize }

func (s *CoinGeckoSource) headers() map[string]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": s.apiKey}
}

func (s *CoinGeckoSource) GetPrices(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error) {
	if len(tokenAddresses) == 0 {
		return map[string]float64{}, nil
	}

	platform, ok := coinGeckoPlatforms[network]
	if !ok {
		return nil, fmt.Errorf("%w: no platform mapping for network %s", entities.ErrProviderRejected, network)
	}

	requestURL := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		s.baseURL, platform, url.QueryEscape(strings.Join(tokenAddresses, ",")))
	body, err := s.http.getJSON(ctx, requestURL, s.headers())
	if err != nil {
		return nil, err
	}

	var decoded map[string]map[string]float64
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode token price response: %w", err)
	}

	prices := make(map[string]float64, len(decoded))
	for addr, quote := range decoded {
		if usd, ok := quote["usd"]; ok && usd > 0 {
			prices[strings.ToLower(addr)] = usd
		}
	}

	return prices, nil
}

// GetTickerPrice looks up a native coin price by ticker symbol
func (s *CoinGeckoSource) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	coinID, ok := nativeCoinIDs[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: no coin id mapping for ticker %s", entities.ErrProviderRejected, symbol)
	}

	requestURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, coinID)
	body, err := s.http.getJSON(ctx, requestURL, s.headers())
	if err != nil {
		return 0, err
	}

	var decoded map[string]map[string]float64
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("failed to decode ticker price response: %w", err)
	}

	usd, ok := decoded[coinID]["usd"]
	if !ok || usd <= 0 {
		return 0, fmt.Errorf("%w: no usd price for %s", entities.ErrProviderRejected, coinID)
	}

	return usd, nil
}
