package model

import "math/big"

// TransferKind identifies the asset class of an account transfer record.
type TransferKind string

const (
	TransferNative TransferKind = "native"
	TransferERC20  TransferKind = "erc20"
	TransferNFT    TransferKind = "nft"
)

// AccountTransfer is one row of a wallet's transfer history, as reported by
// the explorer API. Native transfers carry the wei amount in ValueRaw and an
// empty ContractAddress; NFT rows carry TokenID and a zero ValueRaw.
type AccountTransfer struct {
	Kind            TransferKind
	TxHash          string
	BlockNumber     uint64
	Timestamp       uint64
	From            string
	To              string
	ValueRaw        *big.Int
	ContractAddress string
	TokenSymbol     string
	TokenDecimals   uint8
	TokenID         string
}
