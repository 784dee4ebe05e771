package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the relational schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Wallet{},
		&schema.Token{},
		&schema.TokenHolding{},
		&schema.WalletEdge{},
		&schema.Cluster{},
		&schema.ClusterMember{},
		&schema.ClusterScoreHistory{},
		&schema.SyncCursor{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to safe defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetSyncCursor retrieves the last committed ingestion checkpoint
func (s *pgStore) GetSyncCursor(ctx context.Context) (domain.Point, error) {
	var cursor schema.SyncCursor
	err := s.db.WithContext(ctx).Where("id = ?", schema.SyncCursorID).First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Point{}, nil
		}
		return domain.Point{}, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return domain.Point{Slot: cursor.Slot, Hash: cursor.Hash}, nil
}

// ApplyHoldingDeltas applies one batch of balance mutations and advances the
// sync cursor to point, all inside a single transaction. A failure anywhere
// rolls back every effect including the cursor advance, so a crashed batch is
// reprocessed from the previous checkpoint on restart.
func (s *pgStore) ApplyHoldingDeltas(ctx context.Context, deltas []HoldingDelta, point domain.Point) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		for _, d := range deltas {
			wallet := schema.Wallet{StakeCredential: d.StakeCredential}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "stake_credential"}},
				DoNothing: true,
			}).Create(&wallet).Error; err != nil {
				return fmt.Errorf("failed to upsert wallet: %w", err)
			}

			token := schema.Token{PolicyID: d.PolicyID, AssetName: d.AssetName}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "policy_id"}, {Name: "asset_name"}},
				DoNothing: true,
			}).Clauses(clause.Returning{Columns: []clause.Column{}}).
				Create(&token).Error; err != nil {
				return fmt.Errorf("failed to upsert token: %w", err)
			}

			holding := schema.TokenHolding{
				PolicyID:        d.PolicyID,
				StakeCredential: d.StakeCredential,
				Balance:         d.Delta,
				LastSeen:        now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "policy_id"}, {Name: "stake_credential"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"balance":   gorm.Expr("token_holdings.balance + EXCLUDED.balance"),
					"last_seen": now,
				}),
			}).Create(&holding).Error; err != nil {
				return fmt.Errorf("failed to apply holding delta: %w", err)
			}
		}

		// A holding row, if present, has balance > 0.
		if err := tx.Where("balance <= 0").Delete(&schema.TokenHolding{}).Error; err != nil {
			return fmt.Errorf("failed to sweep emptied holdings: %w", err)
		}

		// Cursor advance is the final statement so the checkpoint is only
		// observable together with every balance effect it represents.
		cursor := schema.SyncCursor{
			ID:        schema.SyncCursorID,
			Slot:      point.Slot,
			Hash:      point.Hash,
			UpdatedAt: now,
		}
		if err := tx.Save(&cursor).Error; err != nil {
			return fmt.Errorf("failed to advance sync cursor: %w", err)
		}

		return nil
	})
}

// ListWalletCredentials returns all known wallet credentials
func (s *pgStore) ListWalletCredentials(ctx context.Context) ([]string, error) {
	var credentials []string
	err := s.db.WithContext(ctx).
		Model(&schema.Wallet{}).
		Pluck("stake_credential", &credentials).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet credentials: %w", err)
	}
	return credentials, nil
}

// ListEdgesByRelation returns all edges of one relation kind
func (s *pgStore) ListEdgesByRelation(ctx context.Context, relation string) ([]schema.WalletEdge, error) {
	var edges []schema.WalletEdge
	err := s.db.WithContext(ctx).
		Where("relation = ?", relation).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return edges, nil
}

// ReplaceClusters atomically replaces the cluster and cluster_member tables
// with the supplied partition (full recompute, not incremental).
func (s *pgStore) ReplaceClusters(ctx context.Context, clusters []ClusterWithMembers) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Score history is append-only and survives rebuilds.
		if err := tx.Where("1 = 1").Delete(&schema.ClusterMember{}).Error; err != nil {
			return fmt.Errorf("failed to clear cluster members: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&schema.Cluster{}).Error; err != nil {
			return fmt.Errorf("failed to clear clusters: %w", err)
		}

		for _, c := range clusters {
			cluster := schema.Cluster{ID: c.ID}
			if err := tx.Create(&cluster).Error; err != nil {
				return fmt.Errorf("failed to create cluster: %w", err)
			}

			members := make([]schema.ClusterMember, 0, len(c.Members))
			for _, m := range c.Members {
				members = append(members, schema.ClusterMember{ClusterID: c.ID, StakeCredential: m})
			}
			if len(members) > 0 {
				if err := tx.CreateInBatches(members, 1000).Error; err != nil {
					return fmt.Errorf("failed to create cluster members: %w", err)
				}
			}
		}

		return nil
	})
}

// ListClustersWithMembers returns all persisted clusters and their members
func (s *pgStore) ListClustersWithMembers(ctx context.Context) ([]ClusterWithMembers, error) {
	var clusters []schema.Cluster
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&clusters).Error; err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	var members []schema.ClusterMember
	if err := s.db.WithContext(ctx).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list cluster members: %w", err)
	}

	byCluster := make(map[string][]string)
	for _, m := range members {
		byCluster[m.ClusterID] = append(byCluster[m.ClusterID], m.StakeCredential)
	}

	result := make([]ClusterWithMembers, 0, len(clusters))
	for _, c := range clusters {
		result = append(result, ClusterWithMembers{ID: c.ID, Members: byCluster[c.ID]})
	}

	return result, nil
}

// GetDeveloperTokenShares returns, per token held by developer-flagged member
// wallets, that developer balance next to the token's total supply
func (s *pgStore) GetDeveloperTokenShares(ctx context.Context, members []string) ([]TokenShare, error) {
	if len(members) == 0 {
		return nil, nil
	}

	var shares []TokenShare
	err := s.db.WithContext(ctx).Raw(`
		SELECT h.policy_id,
			COALESCE(SUM(h.balance) FILTER (WHERE h.stake_credential IN ? AND w.is_developer), 0) AS cluster_balance,
			SUM(h.balance) AS total_balance
		FROM token_holdings h
		JOIN wallets w ON w.stake_credential = h.stake_credential
		GROUP BY h.policy_id
		HAVING COALESCE(SUM(h.balance) FILTER (WHERE h.stake_credential IN ? AND w.is_developer), 0) > 0
	`, members, members).Scan(&shares).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get developer token shares: %w", err)
	}

	return shares, nil
}

// HasRecentEdgeFrom reports whether any member is the source of an edge of
// the given relation with weight above minWeight updated since the cutoff
func (s *pgStore) HasRecentEdgeFrom(ctx context.Context, members []string, relation string, minWeight float64, since time.Time) (bool, error) {
	if len(members) == 0 {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.WalletEdge{}).
		Where("relation = ? AND weight > ? AND updated_at > ? AND src_credential IN ?", relation, minWeight, since, members).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recent edges: %w", err)
	}

	return count > 0, nil
}

// CountAirdropWallets counts members flagged as airdrop recipients
func (s *pgStore) CountAirdropWallets(ctx context.Context, members []string) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Wallet{}).
		Where("stake_credential IN ? AND is_airdrop_recipient = ?", members, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count airdrop wallets: %w", err)
	}

	return int(count), nil
}

// CountRelationParticipants counts distinct members incident to an edge of
// the given relation whose other endpoint is also a member
func (s *pgStore) CountRelationParticipants(ctx context.Context, members []string, relation string) (int, error) {
	if len(members) < 2 {
		return 0, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Raw(`
		SELECT COUNT(DISTINCT participant) FROM (
			SELECT src_credential AS participant FROM wallet_edges
			WHERE relation = ? AND src_credential IN ? AND dst_credential IN ?
			UNION
			SELECT dst_credential FROM wallet_edges
			WHERE relation = ? AND src_credential IN ? AND dst_credential IN ?
		) sub
	`, relation, members, members, relation, members, members).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count relation participants: %w", err)
	}

	return int(count), nil
}

// UpdateClusterScore persists a cluster's score and tags and appends a
// score-history row, in one transaction
func (s *pgStore) UpdateClusterScore(ctx context.Context, clusterID string, score float64, tags []string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&schema.Cluster{}).
			Where("id = ?", clusterID).
			Updates(map[string]interface{}{"risk_score": score, "tags": tagsJSON})
		if result.Error != nil {
			return fmt.Errorf("failed to update cluster score: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Cluster was rebuilt away between listing and scoring; skip silently.
			return nil
		}

		history := schema.ClusterScoreHistory{ClusterID: clusterID, Score: score, CreatedAt: time.Now()}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to append score history: %w", err)
		}

		return nil
	})
}

// GetWallet retrieves a wallet by stake credential; nil when unknown
func (s *pgStore) GetWallet(ctx context.Context, credential string) (*schema.Wallet, error) {
	var wallet schema.Wallet
	err := s.db.WithContext(ctx).Where("stake_credential = ?", credential).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// GetTokenHolders returns current holdings for a policy, largest first
func (s *pgStore) GetTokenHolders(ctx context.Context, policyID string, limit int) ([]schema.TokenHolding, error) {
	var holdings []schema.TokenHolding
	err := s.db.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("balance DESC").
		Limit(limit).
		Find(&holdings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get token holders: %w", err)
	}
	return holdings, nil
}

// GetClusterForCredential returns the cluster containing a credential and its
// member list; nil when the wallet is unclustered
func (s *pgStore) GetClusterForCredential(ctx context.Context, credential string) (*schema.Cluster, []string, error) {
	var member schema.ClusterMember
	err := s.db.WithContext(ctx).Where("stake_credential = ?", credential).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get cluster membership: %w", err)
	}

	var cluster schema.Cluster
	if err := s.db.WithContext(ctx).Where("id = ?", member.ClusterID).First(&cluster).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get cluster: %w", err)
	}

	var members []string
	err = s.db.WithContext(ctx).
		Model(&schema.ClusterMember{}).
		Where("cluster_id = ?", member.ClusterID).
		Pluck("stake_credential", &members).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get cluster members: %w", err)
	}

	return &cluster, members, nil
}

// GetClusterScoreHistory returns recent score rows for a cluster, newest first
func (s *pgStore) GetClusterScoreHistory(ctx context.Context, clusterID string, limit int) ([]schema.ClusterScoreHistory, error) {
	var history []schema.ClusterScoreHistory
	err := s.db.WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("created_at DESC").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	return history, nil
}
