package nftscan

import (
	"testing"
)

func TestToRecord(t *testing.T) {
	spamScore := 95
	cleanScore := 10

	tests := []struct {
		name      string
		item      nftItem
		wantSpam  bool
		wantFloor float64
		wantColl  string
	}{
		{
			name: "clean item with floor price",
			item: func() nftItem {
				var i nftItem
				i.ContractAddress = "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"
				i.TokenID = "1234"
				i.Name = "Ape #1234"
				i.Contract.Symbol = "BAYC"
				i.Collection.Name = "Bored Ape Yacht Club"
				i.Collection.SpamScore = &cleanScore
				i.Collection.FloorPrices = []floorPrice{{ValueUSDCents: 2875000}, {ValueUSDCents: 2900000}}
				return i
			}(),
			wantSpam:  false,
			wantFloor: 29000,
			wantColl:  "Bored Ape Yacht Club",
		},
		{
			name: "spam score at threshold flags the item",
			item: func() nftItem {
				var i nftItem
				i.Collection.SpamScore = &spamScore
				return i
			}(),
			wantSpam: true,
		},
		{
			name: "missing spam score means clean",
			item: func() nftItem {
				var i nftItem
				i.Collection.SpamScore = nil
				return i
			}(),
			wantSpam: false,
		},
		{
			name: "contract name fills in missing collection name",
			item: func() nftItem {
				var i nftItem
				i.Contract.Name = "SomeCollection"
				return i
			}(),
			wantColl: "SomeCollection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := toRecord(tt.item)
			if record.Spam != tt.wantSpam {
				t.Errorf("expected spam=%v, got %v", tt.wantSpam, record.Spam)
			}
			if record.FloorPriceUSD != tt.wantFloor {
				t.Errorf("expected floor %v, got %v", tt.wantFloor, record.FloorPriceUSD)
			}
			if record.CollectionName != tt.wantColl {
				t.Errorf("expected collection %q, got %q", tt.wantColl, record.CollectionName)
			}
		})
	}
}

func TestDecodeOwnedNFTsResponse(t *testing.T) {
	body := []byte(`{
		"next_cursor": "abc123",
		"nfts": [
			{
				"contract_address": "0xed5af388653567af2f388e6224dc7c4b3241c544",
				"token_id": "42",
				"name": "Azuki #42",
				"contract": {"symbol": "AZUKI", "name": "Azuki"},
				"collection": {
					"name": "Azuki",
					"spam_score": 0,
					"floor_prices": [{"value_usd_cents": 412050}]
				}
			}
		]
	}`)

	var page ownedNFTsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.NextCursor != "abc123" {
		t.Errorf("expected cursor abc123, got %s", page.NextCursor)
	}
	if len(page.NFTs) != 1 {
		t.Fatalf("expected 1 nft, got %d", len(page.NFTs))
	}

	record := toRecord(page.NFTs[0])
	if record.FloorPriceUSD != 4120.50 {
		t.Errorf("expected floor 4120.50, got %v", record.FloorPriceUSD)
	}
	if record.Spam {
		t.Error("expected clean item")
	}
}
