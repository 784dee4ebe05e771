package schema

import "time"

// Wallet represents the wallets table. One row per stake credential ever
// observed holding a tracked asset. Rows are created by ingestion and never
// deleted; the flag columns are maintained by external enrichment.
type Wallet struct {
	// StakeCredential is the canonical lowercase hex stake key hash
	StakeCredential string `gorm:"column:stake_credential;primaryKey;type:text"`
	// IsDeveloper marks wallets attributed to a token's development team
	IsDeveloper bool `gorm:"column:is_developer;not null;default:false"`
	// IsAirdropRecipient marks wallets first funded via airdrop
	IsAirdropRecipient bool `gorm:"column:is_airdrop_recipient;not null;default:false"`
	// Meta is an opaque extension field for future enrichment flags
	Meta []byte `gorm:"column:meta;type:jsonb"`
	// CreatedAt is when the wallet was first observed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Wallet model
func (Wallet) TableName() string {
	return "wallets"
}
