package store

import (
	"context"
	"time"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store/schema"
)

// HoldingDelta is one resolved balance mutation produced by ingestion:
// positive deltas come from inserted outputs, negative from spent ones.
type HoldingDelta struct {
	PolicyID        string
	AssetName       string
	StakeCredential string
	Delta           int64
}

// ClusterWithMembers pairs a cluster id with its member credentials.
type ClusterWithMembers struct {
	ID      string
	Members []string
}

// TokenShare reports, for one token, how much of its total supply is held by
// a given wallet set (used by the developer-concentration heuristic).
type TokenShare struct {
	PolicyID       string `gorm:"column:policy_id"`
	ClusterBalance int64  `gorm:"column:cluster_balance"`
	TotalBalance   int64  `gorm:"column:total_balance"`
}

// Store defines the interface for database operations
type Store interface {
	// GetSyncCursor retrieves the last committed ingestion checkpoint
	GetSyncCursor(ctx context.Context) (domain.Point, error)
	// ApplyHoldingDeltas applies one batch of balance mutations and advances
	// the sync cursor to point, all inside a single transaction
	ApplyHoldingDeltas(ctx context.Context, deltas []HoldingDelta, point domain.Point) error

	// ListWalletCredentials returns all known wallet credentials
	ListWalletCredentials(ctx context.Context) ([]string, error)
	// ListEdgesByRelation returns all edges of one relation kind
	ListEdgesByRelation(ctx context.Context, relation string) ([]schema.WalletEdge, error)
	// ReplaceClusters atomically replaces the cluster and cluster_member tables
	ReplaceClusters(ctx context.Context, clusters []ClusterWithMembers) error

	// ListClustersWithMembers returns all persisted clusters and their members
	ListClustersWithMembers(ctx context.Context) ([]ClusterWithMembers, error)
	// GetDeveloperTokenShares returns, per token, the supply held by
	// developer-flagged wallets among members next to the token's total supply
	GetDeveloperTokenShares(ctx context.Context, members []string) ([]TokenShare, error)
	// HasRecentEdgeFrom reports whether any member is the source of an edge of
	// the given relation with weight above minWeight updated since the cutoff
	HasRecentEdgeFrom(ctx context.Context, members []string, relation string, minWeight float64, since time.Time) (bool, error)
	// CountAirdropWallets counts members flagged as airdrop recipients
	CountAirdropWallets(ctx context.Context, members []string) (int, error)
	// CountRelationParticipants counts distinct members incident to an edge of
	// the given relation whose other endpoint is also a member
	CountRelationParticipants(ctx context.Context, members []string, relation string) (int, error)
	// UpdateClusterScore persists a cluster's score and tags and appends a
	// score-history row, in one transaction
	UpdateClusterScore(ctx context.Context, clusterID string, score float64, tags []string) error

	// GetWallet retrieves a wallet by stake credential; nil when unknown
	GetWallet(ctx context.Context, credential string) (*schema.Wallet, error)
	// GetTokenHolders returns current holdings for a policy, largest first
	GetTokenHolders(ctx context.Context, policyID string, limit int) ([]schema.TokenHolding, error)
	// GetClusterForCredential returns the cluster containing a credential and
	// its member list; nil when the wallet is unclustered
	GetClusterForCredential(ctx context.Context, credential string) (*schema.Cluster, []string, error)
	// GetClusterScoreHistory returns recent score rows for a cluster, newest first
	GetClusterScoreHistory(ctx context.Context, clusterID string, limit int) ([]schema.ClusterScoreHistory, error)
}
