// Package postgres persists summary documents for later querying. Scalar
// headline figures get their own columns, the full document is kept as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenscope/internal/model"
)

// Store provides Postgres persistence for summaries.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveDistribution upserts the distribution snapshot and replaces its
// top-holder rows.
func (s *Store) SaveDistribution(ctx context.Context, summary *model.DistributionSummary) error {
	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal distribution: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO token_distributions (
			token_address, token_symbol, to_block, holder_count, gini,
			top_combined_percent, burn_percent, partial, doc, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (token_address)
		DO UPDATE SET
			token_symbol = EXCLUDED.token_symbol,
			to_block = EXCLUDED.to_block,
			holder_count = EXCLUDED.holder_count,
			gini = EXCLUDED.gini,
			top_combined_percent = EXCLUDED.top_combined_percent,
			burn_percent = EXCLUDED.burn_percent,
			partial = EXCLUDED.partial,
			doc = EXCLUDED.doc,
			updated_at = now()
	`,
		summary.TokenAddress,
		summary.TokenSymbol,
		int64(summary.ToBlock),
		summary.HolderCount,
		summary.Gini,
		summary.TopCombined,
		summary.BurnPercent,
		summary.Partial,
		doc,
	)
	batch.Queue(`DELETE FROM token_top_holders WHERE token_address = $1`, summary.TokenAddress)
	for rank, holder := range summary.TopHolders {
		batch.Queue(`
			INSERT INTO token_top_holders (token_address, rank, holder_address, balance_raw, percent_of_supply)
			VALUES ($1, $2, $3, $4, $5)
		`,
			summary.TokenAddress,
			rank+1,
			holder.Address,
			holder.Balance,
			holder.PercentOfSupply,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveWalletSummary upserts the wallet PnL snapshot.
func (s *Store) SaveWalletSummary(ctx context.Context, summary *model.WalletSummary) error {
	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal wallet summary: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wallet_summaries (
			wallet_address, from_timestamp, realized_pnl, unrealized_pnl,
			base_inflow, base_outflow, partial, doc, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (wallet_address)
		DO UPDATE SET
			from_timestamp = EXCLUDED.from_timestamp,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			base_inflow = EXCLUDED.base_inflow,
			base_outflow = EXCLUDED.base_outflow,
			partial = EXCLUDED.partial,
			doc = EXCLUDED.doc,
			updated_at = now()
	`,
		summary.WalletAddress,
		int64(summary.FromTimestamp),
		summary.RealizedPnL,
		summary.UnrealizedPnL,
		summary.BaseInflow,
		summary.BaseOutflow,
		summary.Partial,
		doc,
	)
	return err
}
