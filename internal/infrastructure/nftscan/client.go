// Package nftscan adapts an NFT indexing API to the NFTProvider interface.
// Response shapes and spam scoring stay inside this package.
package nftscan

import (
	"context"
	"fmt"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainfolio/valuator/internal/config"
	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Upstream spam scores run 0-100; at or above this the item is flagged
const spamScoreThreshold = 80

const pageSize = 50

type ownedNFTsResponse struct {
	NextCursor string    `json:"next_cursor"`
	NFTs       []nftItem `json:"nfts"`
}

type nftItem struct {
	ContractAddress string `json:"contract_address"`
	TokenID         string `json:"token_id"`
	Name            string `json:"name"`
	Contract        struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"contract"`
	Collection struct {
		Name        string       `json:"name"`
		SpamScore   *int         `json:"spam_score"`
		FloorPrices []floorPrice `json:"floor_prices"`
	} `json:"collection"`
}

type floorPrice struct {
	ValueUSDCents float64 `json:"value_usd_cents"`
}

// Ensure Client implements NFTProvider
var _ providers.NFTProvider = (*Client)(nil)

// Client fetches owned NFTs from the indexing API, following pagination
type Client struct {
	client  *fasthttp.Client
	limiter *rate.Limiter
	cfg     config.NFTConfig
	logger  *zap.Logger
}

// NewClient creates a new NFT provider client
func NewClient(cfg config.NFTConfig, logger *zap.Logger) *Client {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		client:  &fasthttp.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
		logger:  logger.Named("nftscan"),
	}
}

// GetOwnedNFTs returns every NFT the address owns on the chain, with the
// upstream's spam classification and USD floor price carried through.
func (c *Client) GetOwnedNFTs(ctx context.Context, address, chain string) ([]entities.NFTRecord, error) {
	var records []entities.NFTRecord
	cursor := ""

	for {
		page, err := c.fetchPage(ctx, address, chain, cursor)
		if err != nil {
			return nil, err
		}

		for _, item := range page.NFTs {
			records = append(records, toRecord(item))
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, address, chain, cursor string) (*ownedNFTsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", entities.ErrProviderUnavailable, err)
	}

	query := url.Values{}
	query.Set("chains", chain)
	query.Set("wallet_addresses", address)
	query.Set("limit", fmt.Sprintf("%d", pageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	requestURL := fmt.Sprintf("%s/api/v0/nfts/owners?%s", c.cfg.BaseURL, query.Encode())

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("%w: request to %s: %v", entities.ErrProviderUnavailable, requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.cfg.RequestTimeout); err != nil {
			return nil, fmt.Errorf("%w: request to %s: %v", entities.ErrProviderUnavailable, requestURL, err)
		}
	}

	status := resp.StatusCode()
	if status >= 400 && status < 500 {
		c.logger.Warn("NFT provider rejected request",
			zap.String("chain", chain),
			zap.String("address", address),
			zap.Int("status", status),
		)
		return nil, fmt.Errorf("%w: NFT API returned status %d", entities.ErrProviderRejected, status)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: NFT API returned status %d", entities.ErrProviderUnavailable, status)
	}

	var page ownedNFTsResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("%w: failed to decode NFT response: %v", entities.ErrProviderRejected, err)
	}

	return &page, nil
}

func toRecord(item nftItem) entities.NFTRecord {
	record := entities.NFTRecord{
		ContractAddress: item.ContractAddress,
		TokenID:         item.TokenID,
		Name:            item.Name,
		Symbol:          item.Contract.Symbol,
		CollectionName:  item.Collection.Name,
		Spam:            item.Collection.SpamScore != nil && *item.Collection.SpamScore >= spamScoreThreshold,
	}
	if record.CollectionName == "" {
		record.CollectionName = item.Contract.Name
	}
	for _, fp := range item.Collection.FloorPrices {
		usd := fp.ValueUSDCents / 100
		if usd > record.FloorPriceUSD {
			record.FloorPriceUSD = usd
		}
	}
	return record
}
