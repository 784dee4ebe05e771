package domain

import (
	"fmt"
	"time"
)

// Point represents a chain-indexer checkpoint: the slot and header hash of the
// last applied ledger event. The zero value means "origin" (nothing applied yet).
type Point struct {
	Slot uint64 `json:"slot"`
	Hash string `json:"hash"`
}

// IsOrigin reports whether the point is the chain origin (no events applied).
func (p Point) IsOrigin() bool {
	return p.Slot == 0 && p.Hash == ""
}

func (p Point) String() string {
	if p.IsOrigin() {
		return "origin"
	}
	return fmt.Sprintf("%d.%s", p.Slot, p.Hash)
}

// AssetQuantity is one native-asset amount carried by a UTxO.
type AssetQuantity struct {
	PolicyID  string `json:"policy_id"`
	AssetName string `json:"asset_name"` // hex-encoded, may be empty
	Quantity  int64  `json:"quantity"`
}

// Unit returns the concatenated policy+asset identifier used by chain-data providers.
func (a AssetQuantity) Unit() string {
	return a.PolicyID + a.AssetName
}

// UTxO is an unspent transaction output as reported by the indexer event feed.
type UTxO struct {
	TxID        string          `json:"tx_id"`
	OutputIndex uint32          `json:"output_index"`
	Address     string          `json:"address"`
	Assets      []AssetQuantity `json:"assets"`
}

// LedgerEvent is one indexer diff: outputs created (Insert) and spent (Delete)
// as of Point. Events arrive ordered by point.
type LedgerEvent struct {
	Point  Point  `json:"point"`
	Insert []UTxO `json:"insert"`
	Delete []UTxO `json:"delete"`
}

// HolderCategory classifies a token holder for risk math.
type HolderCategory string

const (
	// HolderCategoryInfrastructure marks known burn/vesting/team wallets,
	// excluded entirely from risk math.
	HolderCategoryInfrastructure HolderCategory = "infrastructure"
	// HolderCategoryLiquidityPool marks script-held pool addresses, excluded
	// from concentration risk but counted in circulating supply.
	HolderCategoryLiquidityPool HolderCategory = "liquidity_pool"
	// HolderCategoryRegular marks everyone else.
	HolderCategoryRegular HolderCategory = "regular"
)

// Holder is one classified holder of the analyzed asset.
type Holder struct {
	Address         string         `json:"address"`
	StakeCredential string         `json:"stakeCredential,omitempty"`
	Quantity        int64          `json:"quantity"`
	Percentage      float64        `json:"percentage"`
	Category        HolderCategory `json:"category"`
}

// TokenRiskReport is the consumer contract returned by the online holder
// analyzer. Field names follow the shape consumed by the chat command layer
// and the public query API.
type TokenRiskReport struct {
	PolicyID              string   `json:"policyId"`
	AssetName             string   `json:"assetName"`
	RiskScore             float64  `json:"riskScore"` // 0-10, one decimal
	Patterns              []string `json:"patterns"`
	TopHolderPercentage   float64  `json:"topHolderPercentage"`
	StakeClusters         int      `json:"stakeClusters"`
	CoordinatedBlocks     int      `json:"coordinatedBlocks"`
	TotalHolders          int      `json:"totalHolders"`
	RegularHolders        int      `json:"regularHolders"`
	LiquidityPools        int      `json:"liquidityPools"`
	InfrastructureHolders int      `json:"infrastructureHolders"`
	AssumedTotalSupply    int64    `json:"assumedTotalSupply"`
	ObservedSupply        int64    `json:"observedSupply"`
	CirculatingSupply     int64    `json:"circulatingSupply"`
	LiquiditySupply       int64    `json:"liquiditySupply"`
	InfrastructureSupply  int64    `json:"infrastructureSupply"`
	Holders               []Holder `json:"holders"`
}

// SuspicionLevel grades the wallet-relationship findings.
type SuspicionLevel string

const (
	SuspicionMedium SuspicionLevel = "medium"
	SuspicionHigh   SuspicionLevel = "high"
)

// ActivityWindow is a 5-minute window in which several top holders were active.
type ActivityWindow struct {
	Start     time.Time      `json:"start"`
	Wallets   []string       `json:"wallets"`
	Suspicion SuspicionLevel `json:"suspicion"`
}

// DirectTransfer records a token transfer observed between two top holders.
type DirectTransfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	TxHash string `json:"txHash"`
}

// WalletRelationReport is the optional deep-dive over the top holders of an
// asset: wallets that received the token without buying it, direct transfers
// between top holders, and time-clustered activity.
type WalletRelationReport struct {
	PolicyID        string           `json:"policyId"`
	AssetName       string           `json:"assetName"`
	NonBuyers       []string         `json:"nonBuyers"`
	DirectTransfers []DirectTransfer `json:"directTransfers"`
	ActivityWindows []ActivityWindow `json:"activityWindows"`
}
