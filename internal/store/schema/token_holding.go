package schema

import "time"

// TokenHolding represents the token_holdings table: the current balance of
// one wallet in one policy's assets. Balances are mutated additively by
// ledger events; a row present in this table always has balance > 0 (rows are
// deleted once the balance drops to or below zero).
type TokenHolding struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// PolicyID is the hex policy hash of the held asset
	PolicyID string `gorm:"column:policy_id;not null;type:text;uniqueIndex:idx_holdings_policy_credential,priority:1"`
	// StakeCredential identifies the holding wallet
	StakeCredential string `gorm:"column:stake_credential;not null;type:text;uniqueIndex:idx_holdings_policy_credential,priority:2;index:idx_holdings_credential"`
	// Balance is the net held quantity
	Balance int64 `gorm:"column:balance;not null"`
	// LastSeen is the timestamp of the last event touching this holding
	LastSeen time.Time `gorm:"column:last_seen;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the TokenHolding model
func (TokenHolding) TableName() string {
	return "token_holdings"
}
