package services

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// spamMarkers is the local deny-list applied on top of the upstream spam
// classifier. Airdropped scam NFTs name themselves after a claim site.
var spamMarkers = []string{
	"visit ",
	"claim ",
	" airdrop",
	".com",
	".io",
	".xyz",
	".net",
	".org/",
	"reward at",
}

// NFTAggregatorService groups raw NFT holdings into spam-filtered,
// floor-valued collections.
type NFTAggregatorService struct {
	logger *zap.Logger
}

// NewNFTAggregatorService creates a new NFT aggregator
func NewNFTAggregatorService(logger *zap.Logger) *NFTAggregatorService {
	return &NFTAggregatorService{logger: logger}
}

// Aggregate deduplicates records by contract address, discarding spam.
// Floor value is the provider floor when positive, never estimated. A
// contract whose tokens were all filtered out is dropped entirely. Output is
// deterministic for identical input.
func (s *NFTAggregatorService) Aggregate(walletID int64, records []entities.NFTRecord) []entities.NFTCollection {
	type group struct {
		collection entities.NFTCollection
		tokenIDs   map[string]struct{}
	}
	groups := make(map[string]*group)

	dropped := 0
	for _, rec := range records {
		if rec.Spam || isSpamName(rec.Name) || isSpamName(rec.CollectionName) {
			dropped++
			continue
		}

		contract := strings.ToLower(rec.ContractAddress)
		g, ok := groups[contract]
		if !ok {
			g = &group{
				collection: entities.NFTCollection{
					WalletID:        walletID,
					ContractAddress: contract,
					Symbol:          rec.Symbol,
					Name:            rec.CollectionName,
				},
				tokenIDs: make(map[string]struct{}),
			}
			if g.collection.Name == "" {
				g.collection.Name = rec.Name
			}
			groups[contract] = g
		}
		g.tokenIDs[rec.TokenID] = struct{}{}
		if rec.FloorPriceUSD > 0 && rec.FloorPriceUSD > g.collection.FloorPriceUSD {
			g.collection.FloorPriceUSD = rec.FloorPriceUSD
		}
	}

	if dropped > 0 {
		s.logger.Debug("Filtered spam NFT records",
			zap.Int64("wallet_id", walletID),
			zap.Int("dropped", dropped),
		)
	}

	collections := lo.MapToSlice(groups, func(_ string, g *group) entities.NFTCollection {
		c := g.collection
		c.ItemCount = len(g.tokenIDs)
		c.TotalValueUSD = c.FloorPriceUSD * float64(c.ItemCount)
		return c
	})
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].ContractAddress < collections[j].ContractAddress
	})

	return collections
}

// isSpamName applies the deny-list heuristic to a display name.
func isSpamName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range spamMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
