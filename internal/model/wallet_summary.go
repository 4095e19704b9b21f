package model

// TokenBreakdown is the per-token accounting result inside a wallet summary.
// Monetary fields are decimal strings denominated in the base asset.
type TokenBreakdown struct {
	TokenAddress  string `json:"token_address"`
	TokenSymbol   string `json:"token_symbol"`
	TokenDecimals uint8  `json:"token_decimals"`
	RemainingQty  string `json:"remaining_qty"`
	CostBasis     string `json:"cost_basis"`
	RealizedPnL   string `json:"realized_pnl"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	GrossBought   string `json:"gross_bought"`
	GrossSold     string `json:"gross_sold"`
	AirdropQty    string `json:"airdrop_qty"`
	ValueUSD      string `json:"value_usd"`
	QuoteFailed   bool   `json:"quote_failed"`
}

// OpenPosition is a held token above the dust thresholds.
type OpenPosition struct {
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol"`
	Quantity     string `json:"quantity"`
	CostBasis    string `json:"cost_basis"`
	ValueUSD     string `json:"value_usd"`
	Unrealized   string `json:"unrealized_pnl"`
}

// ClosedPosition is a fully exited token ranked by realized result.
type ClosedPosition struct {
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol"`
	RealizedPnL  string `json:"realized_pnl"`
	GrossBought  string `json:"gross_bought"`
	GrossSold    string `json:"gross_sold"`
}

// AirdropEntry is a zero-cost token inflow.
type AirdropEntry struct {
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol"`
	Quantity     string `json:"quantity"`
}

// NFTAirdrop counts zero-cost NFT inflows per collection.
type NFTAirdrop struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// WalletSummary is the produced wallet-PnL document.
type WalletSummary struct {
	WalletAddress string           `json:"wallet_address"`
	FromTimestamp uint64           `json:"from_timestamp"`
	RealizedPnL   string           `json:"realized_pnl"`
	UnrealizedPnL string           `json:"unrealized_pnl"`
	BaseInflow    string           `json:"base_inflow"`
	BaseOutflow   string           `json:"base_outflow"`
	Tokens        []TokenBreakdown `json:"tokens"`
	OpenPositions []OpenPosition   `json:"open_positions"`
	TopGains      []ClosedPosition `json:"top_gains"`
	TopLosses     []ClosedPosition `json:"top_losses"`
	Airdrops      []AirdropEntry   `json:"airdrops"`
	NFTAirdrops   []NFTAirdrop     `json:"nft_airdrops"`
	Partial       bool             `json:"partial"`
	GeneratedAt   string           `json:"generated_at"`
}
