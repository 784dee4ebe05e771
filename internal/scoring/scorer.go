// Package scoring implements the offline per-cluster risk scorer: weighted
// heuristics over the wallet graph, persisted with an append-only score trail.
package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/messaging"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
)

// Heuristic weights. The offline score is the plain sum of triggered weights,
// uncapped (unlike the online analyzer).
const (
	weightDevConcentration    = 4.0
	weightLPWithdrawal        = 3.0
	weightAirdropRatio        = 2.0
	weightSynchronizedTrading = 1.0

	// devSupplyShareThreshold triggers when developer wallets in a cluster
	// hold more than this fraction of any token's total supply
	devSupplyShareThreshold = 0.20
	// lpWithdrawMinWeight is the minimum edge weight counted as a withdrawal
	lpWithdrawMinWeight = 0.1
	// lpWithdrawWindow is how far back withdrawal edges are considered
	lpWithdrawWindow = 24 * time.Hour
	// airdropRatioThreshold triggers when this fraction of members is airdrop-flagged
	airdropRatioThreshold = 0.30
	// syncTradingMinWallets is the minimum distinct members sharing same-block buys
	syncTradingMinWallets = 3
)

// Scorer evaluates the offline risk heuristics for every persisted cluster.
type Scorer struct {
	store     store.Store
	clock     adapter.Clock
	publisher messaging.Publisher
}

// NewScorer creates a new offline cluster scorer. publisher may be nil when
// score updates need not be announced.
func NewScorer(st store.Store, clock adapter.Clock, publisher messaging.Publisher) *Scorer {
	return &Scorer{store: st, clock: clock, publisher: publisher}
}

// RunOnce scores every cluster, persists score and tags, appends a history
// row per cluster, and announces the run on the message broker.
func (s *Scorer) RunOnce(ctx context.Context) error {
	clusters, err := s.store.ListClustersWithMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	scored := 0
	for _, cluster := range clusters {
		score, tags, err := s.scoreCluster(ctx, cluster)
		if err != nil {
			return fmt.Errorf("failed to score cluster %s: %w", cluster.ID, err)
		}

		if err := s.store.UpdateClusterScore(ctx, cluster.ID, score, tags); err != nil {
			return fmt.Errorf("failed to persist score for cluster %s: %w", cluster.ID, err)
		}
		scored++

		if s.publisher != nil && score > 0 {
			event := &messaging.ClusterScoredEvent{
				ClusterID: cluster.ID,
				Score:     score,
				Tags:      tags,
				Members:   len(cluster.Members),
				ScoredAt:  s.clock.Now(),
			}
			if err := s.publisher.PublishClusterScored(ctx, event); err != nil {
				// Score is durable; a missed announcement is not worth a retry of the run.
				logger.WarnCtx(ctx, "Failed to publish cluster score", zap.Error(err), zap.String("cluster_id", cluster.ID))
			}
		}
	}

	logger.InfoCtx(ctx, "Scored wallet clusters", zap.Int("clusters", scored))
	return nil
}

// scoreCluster evaluates the independent heuristics for one cluster and
// returns the summed weight with the triggered tags
func (s *Scorer) scoreCluster(ctx context.Context, cluster store.ClusterWithMembers) (float64, []string, error) {
	score := 0.0
	tags := []string{}

	devTriggered, err := s.hasDevConcentration(ctx, cluster.Members)
	if err != nil {
		return 0, nil, err
	}
	if devTriggered {
		score += weightDevConcentration
		tags = append(tags, domain.TagHighDevConcentration)
	}

	withdrawal, err := s.store.HasRecentEdgeFrom(ctx, cluster.Members,
		domain.RelationLPWithdraw, lpWithdrawMinWeight, s.clock.Now().Add(-lpWithdrawWindow))
	if err != nil {
		return 0, nil, err
	}
	if withdrawal {
		score += weightLPWithdrawal
		tags = append(tags, domain.TagRecentLPWithdrawal)
	}

	airdrops, err := s.store.CountAirdropWallets(ctx, cluster.Members)
	if err != nil {
		return 0, nil, err
	}
	if len(cluster.Members) > 0 && float64(airdrops)/float64(len(cluster.Members)) > airdropRatioThreshold {
		score += weightAirdropRatio
		tags = append(tags, domain.TagHighAirdropRatio)
	}

	traders, err := s.store.CountRelationParticipants(ctx, cluster.Members, domain.RelationBuySameBlock)
	if err != nil {
		return 0, nil, err
	}
	if traders >= syncTradingMinWallets {
		score += weightSynchronizedTrading
		tags = append(tags, domain.TagSynchronizedTrading)
	}

	return score, tags, nil
}

// hasDevConcentration reports whether developer-flagged wallets in the
// cluster hold more than the threshold share of any token's total supply
func (s *Scorer) hasDevConcentration(ctx context.Context, members []string) (bool, error) {
	shares, err := s.store.GetDeveloperTokenShares(ctx, members)
	if err != nil {
		return false, err
	}

	for _, share := range shares {
		if share.TotalBalance <= 0 {
			continue
		}
		if float64(share.ClusterBalance) > devSupplyShareThreshold*float64(share.TotalBalance) {
			return true, nil
		}
	}

	return false, nil
}
