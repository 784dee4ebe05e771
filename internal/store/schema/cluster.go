package schema

import "time"

// Cluster represents the clusters table: a connected component of wallets
// believed to share control. The table is fully rebuilt on every clustering
// run; only components with at least two members are persisted.
type Cluster struct {
	// ID is a uuid minted by the clustering run
	ID string `gorm:"column:id;primaryKey;type:text"`
	// RiskScore is the sum of triggered heuristic weights from the last scoring run
	RiskScore float64 `gorm:"column:risk_score;not null;default:0"`
	// Tags holds the triggered heuristic tags as a JSON array of strings
	Tags []byte `gorm:"column:tags;type:jsonb"`
	// CreatedAt is when this cluster was materialized
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Cluster model
func (Cluster) TableName() string {
	return "clusters"
}

// ClusterMember represents the cluster_members table, one row per wallet in a
// cluster, rebuilt together with its cluster.
type ClusterMember struct {
	// ClusterID references the owning cluster
	ClusterID string `gorm:"column:cluster_id;primaryKey;type:text"`
	// StakeCredential identifies the member wallet
	StakeCredential string `gorm:"column:stake_credential;primaryKey;type:text;index:idx_cluster_members_credential"`
}

// TableName specifies the table name for the ClusterMember model
func (ClusterMember) TableName() string {
	return "cluster_members"
}

// ClusterScoreHistory represents the cluster_score_history table: an
// append-only trail of scores, one row per cluster per scoring run.
type ClusterScoreHistory struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ClusterID references the scored cluster
	ClusterID string `gorm:"column:cluster_id;not null;type:text;index:idx_score_history_cluster"`
	// Score is the risk score recorded by the run
	Score float64 `gorm:"column:score;not null"`
	// CreatedAt is when the score was recorded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ClusterScoreHistory model
func (ClusterScoreHistory) TableName() string {
	return "cluster_score_history"
}
