package schema

import "time"

// WalletEdge represents the wallet_edges table: an observed relationship
// between two wallets. Edges are produced by upstream relationship detection
// and consumed by clustering and scoring; this core never writes them.
type WalletEdge struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SrcCredential is the source wallet stake credential
	SrcCredential string `gorm:"column:src_credential;not null;type:text;uniqueIndex:idx_edges_src_dst_relation,priority:1"`
	// DstCredential is the destination wallet stake credential
	DstCredential string `gorm:"column:dst_credential;not null;type:text;uniqueIndex:idx_edges_src_dst_relation,priority:2"`
	// Relation is the relationship kind (same_stake, lp_withdraw, buy_same_block)
	Relation string `gorm:"column:relation;not null;type:text;uniqueIndex:idx_edges_src_dst_relation,priority:3;index:idx_edges_relation"`
	// Weight is the detector's confidence or magnitude for this edge
	Weight float64 `gorm:"column:weight;not null;default:0"`
	// UpdatedAt is when the edge was last observed
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the WalletEdge model
func (WalletEdge) TableName() string {
	return "wallet_edges"
}
