package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokenscope/internal/chain"
)

// Resolver answers metadata questions from the chain, memoizing per token.
type Resolver struct {
	client *chain.Client
	cache  *MetaCache
}

func NewResolver(client *chain.Client) *Resolver {
	return &Resolver{client: client, cache: NewMetaCache()}
}

func (r *Resolver) Meta(ctx context.Context, tokenAddr string) (Meta, error) {
	address := common.HexToAddress(tokenAddr)
	if meta, ok := r.cache.Get(address); ok {
		return meta, nil
	}
	meta, err := FetchMeta(ctx, r.client, address)
	if err != nil {
		return Meta{}, err
	}
	r.cache.Set(address, meta)
	return meta, nil
}

func (r *Resolver) TotalSupply(ctx context.Context, tokenAddr string) (*big.Int, error) {
	return FetchTotalSupply(ctx, r.client, common.HexToAddress(tokenAddr))
}
