package schema

import "time"

// SyncCursorID is the primary key of the single sync_cursor row.
const SyncCursorID = 1

// SyncCursor represents the sync_cursor table: a single row holding the last
// indexer point whose effects are durably committed. The row is written only
// as the final statement of a successful ingestion transaction.
type SyncCursor struct {
	ID int `gorm:"column:id;primaryKey"`
	// Slot is the slot number of the checkpoint point
	Slot uint64 `gorm:"column:slot;not null;default:0"`
	// Hash is the header hash of the checkpoint point
	Hash string `gorm:"column:hash;not null;default:'';type:text"`
	// UpdatedAt is when the cursor last advanced
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the SyncCursor model
func (SyncCursor) TableName() string {
	return "sync_cursor"
}
