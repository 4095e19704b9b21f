package pnl

import (
	"math/big"
	"sort"

	"tokenscope/internal/model"
)

// TokenFlow accumulates one token's movement within a single transaction.
type TokenFlow struct {
	Inflow     *big.Int
	Outflow    *big.Int
	Senders    map[string]struct{}
	Recipients map[string]struct{}
	Decimals   uint8
	Symbol     string
}

func newTokenFlow() *TokenFlow {
	return &TokenFlow{
		Inflow:     big.NewInt(0),
		Outflow:    big.NewInt(0),
		Senders:    make(map[string]struct{}),
		Recipients: make(map[string]struct{}),
	}
}

// TxLegs aggregates a wallet's asset movements within one transaction hash.
// Native and wrapped-native legs are netted together so a wrap-then-swap in
// one transaction is not counted twice.
type TxLegs struct {
	Hash        string
	BlockNumber uint64
	Timestamp   uint64
	NativeDelta  *big.Int // signed wei, positive into the wallet
	WrappedDelta *big.Int
	Tokens       map[string]*TokenFlow
}

// BaseDelta returns the transaction's net base-asset flow (native + wrapped).
func (l *TxLegs) BaseDelta() *big.Int {
	return new(big.Int).Add(l.NativeDelta, l.WrappedDelta)
}

// buildLegs folds a wallet's transfer history into per-hash leg aggregates
// and a per-block net base-asset flow. NFT rows are handled separately by the
// accountant and are skipped here. The returned hash list preserves
// chronological order of first appearance.
func buildLegs(wallet string, transfers []model.AccountTransfer, wrappedNative string) (map[string]*TxLegs, map[uint64]*big.Int, []string) {
	legsByHash := make(map[string]*TxLegs)
	blockFlows := make(map[uint64]*big.Int)
	order := make([]string, 0)

	for _, transfer := range transfers {
		if transfer.Kind == model.TransferNFT {
			continue
		}

		legs, ok := legsByHash[transfer.TxHash]
		if !ok {
			legs = &TxLegs{
				Hash:         transfer.TxHash,
				BlockNumber:  transfer.BlockNumber,
				Timestamp:    transfer.Timestamp,
				NativeDelta:  big.NewInt(0),
				WrappedDelta: big.NewInt(0),
				Tokens:       make(map[string]*TokenFlow),
			}
			legsByHash[transfer.TxHash] = legs
			order = append(order, transfer.TxHash)
		}

		value := transfer.ValueRaw
		if value == nil || value.Sign() == 0 {
			continue
		}

		switch {
		case transfer.Kind == model.TransferNative:
			applyBase(legs.NativeDelta, blockFlows, transfer, wallet, value)
		case transfer.ContractAddress == wrappedNative:
			applyBase(legs.WrappedDelta, blockFlows, transfer, wallet, value)
		default:
			flow, ok := legs.Tokens[transfer.ContractAddress]
			if !ok {
				flow = newTokenFlow()
				flow.Decimals = transfer.TokenDecimals
				flow.Symbol = transfer.TokenSymbol
				legs.Tokens[transfer.ContractAddress] = flow
			}
			if transfer.To == wallet {
				flow.Inflow.Add(flow.Inflow, value)
				flow.Senders[transfer.From] = struct{}{}
			}
			if transfer.From == wallet {
				flow.Outflow.Add(flow.Outflow, value)
				flow.Recipients[transfer.To] = struct{}{}
			}
		}
	}

	return legsByHash, blockFlows, order
}

func applyBase(delta *big.Int, blockFlows map[uint64]*big.Int, transfer model.AccountTransfer, wallet string, value *big.Int) {
	blockFlow, ok := blockFlows[transfer.BlockNumber]
	if !ok {
		blockFlow = big.NewInt(0)
		blockFlows[transfer.BlockNumber] = blockFlow
	}
	if transfer.To == wallet {
		delta.Add(delta, value)
		blockFlow.Add(blockFlow, value)
	}
	if transfer.From == wallet {
		delta.Sub(delta, value)
		blockFlow.Sub(blockFlow, value)
	}
}

// tokenMoves lists the net token movements of one transaction, token keys
// sorted for deterministic replay.
func tokenMoves(legs *TxLegs) []TokenMove {
	keys := make([]string, 0, len(legs.Tokens))
	for key := range legs.Tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	moves := make([]TokenMove, 0, len(keys))
	for _, key := range keys {
		flow := legs.Tokens[key]
		net := new(big.Int).Sub(flow.Inflow, flow.Outflow)
		if net.Sign() == 0 {
			continue
		}
		moves = append(moves, TokenMove{
			Token:   key,
			Inbound: net.Sign() > 0,
			Qty:     new(big.Int).Abs(net),
			Flow:    flow,
			Legs:    legs,
		})
	}
	return moves
}
