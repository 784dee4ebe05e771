package schema

import "time"

// Token represents the tokens table. A token is identified by its minting
// policy plus an optional hex asset name; rows are created on the first
// observed holding of the asset.
type Token struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// PolicyID is the hex hash of the minting policy script
	PolicyID string `gorm:"column:policy_id;not null;type:text;uniqueIndex:idx_tokens_policy_asset,priority:1"`
	// AssetName is the hex-encoded asset name within the policy (empty for unnamed assets)
	AssetName string `gorm:"column:asset_name;not null;default:'';type:text;uniqueIndex:idx_tokens_policy_asset,priority:2"`
	// CreatedAt is when the asset was first observed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
