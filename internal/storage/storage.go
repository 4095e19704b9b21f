// Package storage persists produced summary documents.
package storage

import (
	"context"

	"tokenscope/internal/model"
)

// Sink is a destination for finished summary documents.
type Sink interface {
	SaveDistribution(ctx context.Context, summary *model.DistributionSummary) error
	SaveWalletSummary(ctx context.Context, summary *model.WalletSummary) error
}

// MultiSink fans writes out to several sinks, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) SaveDistribution(ctx context.Context, summary *model.DistributionSummary) error {
	for _, sink := range m {
		if err := sink.SaveDistribution(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) SaveWalletSummary(ctx context.Context, summary *model.WalletSummary) error {
	for _, sink := range m {
		if err := sink.SaveWalletSummary(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}
