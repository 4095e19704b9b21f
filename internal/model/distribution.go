package model

import "math/big"

// HolderRow is one holder in the distribution view.
type HolderRow struct {
	Address         string   `json:"address"`
	BalanceRaw      *big.Int `json:"-"`
	Balance         string   `json:"balance_raw"`
	PercentOfSupply float64  `json:"percent_of_supply"`
}

// BandCount is one histogram band with its holder count.
type BandCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DistributionSummary is the produced token-distribution document.
type DistributionSummary struct {
	TokenAddress   string      `json:"token_address"`
	TokenSymbol    string      `json:"token_symbol"`
	TokenDecimals  uint8       `json:"token_decimals"`
	FromBlock      uint64      `json:"from_block"`
	ToBlock        uint64      `json:"to_block"`
	HolderCount    int         `json:"holder_count"`
	TopHolders     []HolderRow `json:"top_holders"`
	TopCombined    float64     `json:"top_combined_percent"`
	Gini           float64     `json:"gini"`
	PercentBands   []BandCount `json:"percent_bands"`
	ValueBands     []BandCount `json:"value_bands"`
	TotalSupplyRaw string      `json:"total_supply_raw"`
	BurnedRaw      string      `json:"burned_raw"`
	BurnPercent    float64     `json:"burn_percent"`
	PriceUSD       string      `json:"price_usd"`
	Partial        bool        `json:"partial"`
	GeneratedAt    string      `json:"generated_at"`
}
