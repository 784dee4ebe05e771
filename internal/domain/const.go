package domain

// Relation kinds stored on wallet edges. Edges are produced by upstream
// relationship detection and consumed by clustering and scoring.
const (
	// RelationSameStake links payment addresses sharing one stake credential
	RelationSameStake = "same_stake"
	// RelationLPWithdraw links a wallet to a liquidity-withdrawal observation
	RelationLPWithdraw = "lp_withdraw"
	// RelationBuySameBlock links wallets that bought the same asset in the same block
	RelationBuySameBlock = "buy_same_block"
)

// Cluster risk tags persisted by the offline scorer.
const (
	TagHighDevConcentration = "high_dev_concentration"
	TagRecentLPWithdrawal   = "recent_lp_withdrawal"
	TagHighAirdropRatio     = "high_airdrop_ratio"
	TagSynchronizedTrading  = "synchronized_trading"
)

const (
	// CardanoBurnAddress is the conventional un-spendable address used for token burns
	CardanoBurnAddress = "addr1w8qmxkacjdffxah0l3qg8hq2pmvs58q8lcy42zy9kda2ylc6dy5r4"

	// ScriptAddressPrefix is the bech32 prefix shared by Shelley script addresses
	// commonly used by DEX pools
	ScriptAddressPrefix = "addr1w"
	// ScriptAddressPrefixZ covers script-payment/script-stake base addresses
	ScriptAddressPrefixZ = "addr1z"
)
