package pnl

import "math/big"

// LegKind is the resolved classification of one token movement.
type LegKind int

const (
	LegBuy LegKind = iota
	LegSell
	LegAirdrop
	LegDisposal
)

// Resolution is a classified token movement. Base is the attributed
// base-asset amount in wei, always non-negative; Estimated marks values that
// came from the price oracle rather than an on-chain settlement signal.
type Resolution struct {
	Kind      LegKind
	Base      *big.Int
	Estimated bool
}

// TokenMove is one token's net movement within a transaction.
type TokenMove struct {
	Token   string
	Inbound bool
	Qty     *big.Int
	Flow    *TokenFlow
	Legs    *TxLegs
}

// classifyContext carries the settlement signals shared across moves. Block
// flows are consumed once attributed, so a same-block signal cannot fund two
// different movements.
type classifyContext struct {
	blockFlows map[uint64]*big.Int
	usedBlocks map[uint64]struct{}
	routers    map[string]struct{}
	nearSpan   uint64
	spotWei    func(token string, qty *big.Int, decimals uint8) (*big.Int, bool)
}

// classifier is one pure rule of the cascade. Rules are tried in fixed
// priority order; the first match wins.
type classifier func(ctx *classifyContext, move TokenMove) (Resolution, bool)

var cascade = []classifier{
	classifySingleTokenNet,
	classifyIssuerBlockNet,
	classifyNearBlockNet,
	classifySpotEstimate,
}

// classify runs the cascade and falls through to the zero-cost outcomes:
// an unresolved inflow is an airdrop, an unresolved outflow a zero-proceeds
// disposal.
func classify(ctx *classifyContext, move TokenMove) Resolution {
	for _, rule := range cascade {
		if resolution, ok := rule(ctx, move); ok {
			return resolution
		}
	}
	if move.Inbound {
		return Resolution{Kind: LegAirdrop, Base: big.NewInt(0)}
	}
	return Resolution{Kind: LegDisposal, Base: big.NewInt(0)}
}

// classifySingleTokenNet is the primary rule: when exactly one non-base token
// moved in the hash, the hash's entire net base delta settles it.
func classifySingleTokenNet(_ *classifyContext, move TokenMove) (Resolution, bool) {
	if len(move.Legs.Tokens) != 1 {
		return Resolution{}, false
	}
	base := move.Legs.BaseDelta()
	switch {
	case base.Sign() < 0 && move.Inbound:
		return Resolution{Kind: LegBuy, Base: new(big.Int).Neg(base)}, true
	case base.Sign() > 0 && !move.Inbound:
		return Resolution{Kind: LegSell, Base: base}, true
	default:
		return Resolution{}, false
	}
}

// classifyIssuerBlockNet covers bonding-curve mints and router settlement:
// the hash itself carried no base leg, but the counterparty is the token
// contract or a known router, and the enclosing block's net base flow has
// the required sign.
func classifyIssuerBlockNet(ctx *classifyContext, move TokenMove) (Resolution, bool) {
	if move.Legs.BaseDelta().Sign() != 0 {
		return Resolution{}, false
	}
	if !counterpartyIsIssuer(ctx, move) {
		return Resolution{}, false
	}
	return takeBlockNet(ctx, move, move.Legs.BlockNumber)
}

// classifyNearBlockNet tolerates multi-block settlement through proxies by
// searching blocks at offsets ±1 and ±2, nearest first.
func classifyNearBlockNet(ctx *classifyContext, move TokenMove) (Resolution, bool) {
	block := move.Legs.BlockNumber
	for span := uint64(1); span <= ctx.nearSpan; span++ {
		if resolution, ok := takeBlockNet(ctx, move, block+span); ok {
			return resolution, true
		}
		if block >= span {
			if resolution, ok := takeBlockNet(ctx, move, block-span); ok {
				return resolution, true
			}
		}
	}
	return Resolution{}, false
}

// classifySpotEstimate prices an outflow with no on-chain settlement signal
// via the spot oracle. Inflows are left to the airdrop fallback: an inbound
// transfer with no cost leg is not evidence the wallet paid anything.
func classifySpotEstimate(ctx *classifyContext, move TokenMove) (Resolution, bool) {
	if move.Inbound || ctx.spotWei == nil {
		return Resolution{}, false
	}
	value, ok := ctx.spotWei(move.Token, move.Qty, move.Flow.Decimals)
	if !ok || value.Sign() <= 0 {
		return Resolution{}, false
	}
	return Resolution{Kind: LegSell, Base: value, Estimated: true}, true
}

func counterpartyIsIssuer(ctx *classifyContext, move TokenMove) bool {
	parties := move.Flow.Senders
	if !move.Inbound {
		parties = move.Flow.Recipients
	}
	for party := range parties {
		if party == move.Token {
			return true
		}
		if _, ok := ctx.routers[party]; ok {
			return true
		}
	}
	return false
}

func takeBlockNet(ctx *classifyContext, move TokenMove, block uint64) (Resolution, bool) {
	if _, used := ctx.usedBlocks[block]; used {
		return Resolution{}, false
	}
	net, ok := ctx.blockFlows[block]
	if !ok || net == nil {
		return Resolution{}, false
	}
	switch {
	case move.Inbound && net.Sign() < 0:
		ctx.usedBlocks[block] = struct{}{}
		return Resolution{Kind: LegBuy, Base: new(big.Int).Neg(net)}, true
	case !move.Inbound && net.Sign() > 0:
		ctx.usedBlocks[block] = struct{}{}
		return Resolution{Kind: LegSell, Base: new(big.Int).Set(net)}, true
	default:
		return Resolution{}, false
	}
}
