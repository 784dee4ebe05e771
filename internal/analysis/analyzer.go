// Package analysis implements the online per-token holder risk analyzer. It
// queries the chain-data provider directly, classifies holders, and derives a
// 0-10 risk score with human-readable pattern explanations.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/address"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/providers/blockfrost"
)

const (
	// maxAutoDetectAssets bounds provider calls when an asset name is omitted
	maxAutoDetectAssets = 5
	// lpShareThreshold is the supply share above which a credential-less or
	// script-prefixed holder is treated as a liquidity pool
	lpShareThreshold = 0.07
	// supplyFloor corrects implausibly small observed supplies on truncated
	// holder lists
	supplyFloor = 1_000_000_000
	// minHoldersForFloor is how many holders must be present before the
	// supply floor correction applies
	minHoldersForFloor = 100

	topHolderTriggerPct    = 9.0
	topHolderMaxPoints     = 5.0
	stakeClusterMinAddrs   = 4 // "more than 3"
	stakeClusterMinPct     = 5.0
	stakeClusterMaxPoints  = 3.0
	coordinatedBlockMinTxs = 3
	coordinatedBlockMaxPts = 2.0
	identicalMinHolders    = 5
	identicalMaxPoints     = 2.0
	maxRiskScore           = 10.0

	// recentTxCount is how many recent asset transactions feed the
	// coordinated-block heuristic
	recentTxCount = 100
	// pacingBurst is how many provider calls run between pacing sleeps
	pacingBurst = 10
)

// Config holds analyzer configuration
type Config struct {
	// InfrastructureAddresses is the allowlist of known burn/vesting wallets,
	// excluded entirely from risk math
	InfrastructureAddresses []string
	// PaceInterval is the sleep between bursts of provider calls
	PaceInterval time.Duration
	// TopHolderCount is how many holders feed the wallet-relationship analysis
	TopHolderCount int
	// RelationWorkers bounds concurrent provider calls during relationship analysis
	RelationWorkers int
}

// Analyzer computes per-token holder risk reports from chain-data provider
// responses. It holds no mutable state between analyses, so distinct tokens
// may be analyzed concurrently.
type Analyzer struct {
	config         Config
	chain          blockfrost.Client
	clock          adapter.Clock
	infrastructure map[string]bool
}

// NewAnalyzer creates a new holder risk analyzer
func NewAnalyzer(cfg Config, chain blockfrost.Client, clock adapter.Clock) *Analyzer {
	if cfg.PaceInterval == 0 {
		cfg.PaceInterval = 500 * time.Millisecond
	}
	if cfg.TopHolderCount == 0 {
		cfg.TopHolderCount = 20
	}
	if cfg.RelationWorkers == 0 {
		cfg.RelationWorkers = 4
	}

	infra := make(map[string]bool, len(cfg.InfrastructureAddresses))
	for _, a := range cfg.InfrastructureAddresses {
		infra[a] = true
	}

	return &Analyzer{
		config:         cfg,
		chain:          chain,
		clock:          clock,
		infrastructure: infra,
	}
}

// AnalyzeToken analyzes the distribution of one token. When assetName is
// empty, the asset with the most distinct holders under the policy is
// auto-detected. Missing data yields a well-formed zero-score report, never
// an error; only request construction failures surface as errors.
func (a *Analyzer) AnalyzeToken(ctx context.Context, policyID, assetName string) (*domain.TokenRiskReport, error) {
	unit, assetName, err := a.resolveUnit(ctx, policyID, assetName)
	if err != nil {
		if err == domain.ErrTokenNotFound {
			return noDataReport(policyID, assetName, "No asset found under this policy"), nil
		}
		return nil, err
	}

	addresses, err := a.chain.AssetAddresses(ctx, unit)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to fetch holder list", zap.Error(err), zap.String("unit", unit))
		return noDataReport(policyID, assetName, "Holder data unavailable for this asset"), nil
	}
	if len(addresses) == 0 {
		return noDataReport(policyID, assetName, "No holders found for this asset"), nil
	}

	holders := a.resolveHolders(ctx, addresses)

	report := a.buildReport(policyID, assetName, holders)

	// Coordinated-block heuristic runs off recent asset transactions; a
	// failed fetch degrades to a report without it.
	txs, err := a.chain.AssetTransactions(ctx, unit, recentTxCount)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to fetch recent asset transactions", zap.Error(err), zap.String("unit", unit))
	} else {
		a.applyCoordinatedBlocks(report, txs)
	}

	report.RiskScore = clampScore(report.RiskScore)
	return report, nil
}

// resolveUnit picks the concrete asset to analyze. With an explicit asset
// name the unit is formed directly; otherwise the first assets under the
// policy are probed and the one with the most distinct holders wins.
func (a *Analyzer) resolveUnit(ctx context.Context, policyID, assetName string) (string, string, error) {
	if assetName != "" {
		return policyID + assetName, assetName, nil
	}

	assets, err := a.chain.AssetsByPolicy(ctx, policyID)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to list policy assets", zap.Error(err), zap.String("policy_id", policyID))
		return "", "", domain.ErrTokenNotFound
	}
	if len(assets) == 0 {
		return "", "", domain.ErrTokenNotFound
	}

	if len(assets) > maxAutoDetectAssets {
		assets = assets[:maxAutoDetectAssets]
	}

	bestUnit := assets[0].Asset
	bestHolders := -1
	for i, asset := range assets {
		holders, err := a.chain.AssetAddresses(ctx, asset.Asset)
		if err != nil {
			logger.DebugCtx(ctx, "Skipping unprobeable asset", zap.Error(err), zap.String("asset", asset.Asset))
			continue
		}
		if len(holders) > bestHolders {
			bestHolders = len(holders)
			bestUnit = asset.Asset
		}
		if i%pacingBurst == pacingBurst-1 {
			a.clock.Sleep(a.config.PaceInterval)
		}
	}

	return bestUnit, bestUnit[len(policyID):], nil
}

// resolveHolders parses holder quantities and resolves stake credentials.
// Local decoding is tried first; the provider is consulted only when the
// address does not decode locally, and any lookup failure simply leaves the
// credential empty.
func (a *Analyzer) resolveHolders(ctx context.Context, addresses []blockfrost.AssetAddress) []domain.Holder {
	holders := make([]domain.Holder, 0, len(addresses))
	providerCalls := 0

	for _, entry := range addresses {
		quantity, err := strconv.ParseInt(entry.Quantity, 10, 64)
		if err != nil || quantity <= 0 {
			continue
		}

		holder := domain.Holder{Address: entry.Address, Quantity: quantity}

		if credential, ok := address.ResolveStakeCredential(entry.Address); ok {
			holder.StakeCredential = credential
		} else if credential, ok := address.ResolveStakeAddress(entry.Address); ok {
			holder.StakeCredential = credential
		} else {
			detail, err := a.chain.AddressDetail(ctx, entry.Address)
			providerCalls++
			if err == nil && detail.StakeAddress != nil {
				if credential, ok := address.ResolveStakeAddress(*detail.StakeAddress); ok {
					holder.StakeCredential = credential
				}
			}
			if providerCalls%pacingBurst == 0 {
				a.clock.Sleep(a.config.PaceInterval)
			}
		}

		holders = append(holders, holder)
	}

	sort.Slice(holders, func(i, j int) bool { return holders[i].Quantity > holders[j].Quantity })
	return holders
}

// buildReport classifies holders and evaluates the holder-set heuristics
func (a *Analyzer) buildReport(policyID, assetName string, holders []domain.Holder) *domain.TokenRiskReport {
	report := &domain.TokenRiskReport{
		PolicyID:     policyID,
		AssetName:    assetName,
		Patterns:     []string{},
		TotalHolders: len(holders),
	}

	var observed int64
	for _, h := range holders {
		observed += h.Quantity
	}
	report.ObservedSupply = observed

	// Heuristic correction for truncated holder lists.
	assumed := observed
	if len(holders) >= minHoldersForFloor && observed < supplyFloor {
		assumed = supplyFloor
	}
	report.AssumedTotalSupply = assumed

	classified := a.classifyHolders(holders, assumed)
	var regular []domain.Holder
	for i := range classified {
		switch classified[i].Category {
		case domain.HolderCategoryInfrastructure:
			report.InfrastructureHolders++
			report.InfrastructureSupply += classified[i].Quantity
		case domain.HolderCategoryLiquidityPool:
			report.LiquidityPools++
			report.LiquiditySupply += classified[i].Quantity
		default:
			report.RegularHolders++
			regular = append(regular, classified[i])
		}
	}

	report.CirculatingSupply = assumed - report.InfrastructureSupply

	if report.InfrastructureHolders > 0 {
		report.Patterns = append(report.Patterns, fmt.Sprintf(
			"✓ Excluded %d known infrastructure wallets (burn/vesting) from risk scoring",
			report.InfrastructureHolders))
	}
	if report.LiquidityPools > 0 {
		report.Patterns = append(report.Patterns, fmt.Sprintf(
			"✓ Identified %d liquidity pools holding %.1f%% of supply (excluded from concentration risk)",
			report.LiquidityPools, percentage(report.LiquiditySupply, assumed)))
	}

	for i := range classified {
		classified[i].Percentage = percentage(classified[i].Quantity, report.CirculatingSupply)
	}
	report.Holders = truncateHolders(classified, 100)

	if report.CirculatingSupply <= 0 || len(regular) == 0 {
		return report
	}

	report.RiskScore += a.scoreTopHolder(report, regular)
	report.RiskScore += a.scoreStakeClusters(report, regular)
	report.RiskScore += a.scoreIdenticalBalances(report, regular)

	return report
}

// classifyHolders partitions holders into infrastructure, liquidity pools and
// regular holders
func (a *Analyzer) classifyHolders(holders []domain.Holder, assumedSupply int64) []domain.Holder {
	classified := make([]domain.Holder, len(holders))
	copy(classified, holders)

	for i := range classified {
		h := &classified[i]
		if a.infrastructure[h.Address] {
			h.Category = domain.HolderCategoryInfrastructure
			continue
		}

		share := float64(h.Quantity) / float64(assumedSupply)
		if share > lpShareThreshold && (h.StakeCredential == "" || isScriptAddress(h.Address)) {
			h.Category = domain.HolderCategoryLiquidityPool
			continue
		}

		h.Category = domain.HolderCategoryRegular
	}

	return classified
}

// scoreTopHolder applies the top-regular-holder concentration heuristic
func (a *Analyzer) scoreTopHolder(report *domain.TokenRiskReport, regular []domain.Holder) float64 {
	top := regular[0]
	pct := percentage(top.Quantity, report.CirculatingSupply)
	report.TopHolderPercentage = math.Round(pct*10) / 10

	if pct <= topHolderTriggerPct {
		return 0
	}

	points := math.Min(topHolderMaxPoints, pct/2)
	report.Patterns = append(report.Patterns, fmt.Sprintf(
		"Top holder controls %.1f%% of circulating supply", report.TopHolderPercentage))
	return points
}

// scoreStakeClusters applies the multi-address stake-credential heuristic:
// one stake key controlling several funded addresses with a meaningful
// combined share looks like deliberate distribution masking
func (a *Analyzer) scoreStakeClusters(report *domain.TokenRiskReport, regular []domain.Holder) float64 {
	type group struct {
		addresses int
		balance   int64
	}
	byCredential := make(map[string]*group)
	for _, h := range regular {
		if h.StakeCredential == "" {
			continue
		}
		g, ok := byCredential[h.StakeCredential]
		if !ok {
			g = &group{}
			byCredential[h.StakeCredential] = g
		}
		g.addresses++
		g.balance += h.Quantity
	}

	credentials := make([]string, 0, len(byCredential))
	for credential := range byCredential {
		credentials = append(credentials, credential)
	}
	sort.Strings(credentials)

	points := 0.0
	for _, credential := range credentials {
		g := byCredential[credential]
		pct := percentage(g.balance, report.CirculatingSupply)
		if g.addresses < stakeClusterMinAddrs || pct <= stakeClusterMinPct {
			continue
		}

		report.StakeClusters++
		points += math.Min(stakeClusterMaxPoints, float64(g.addresses)/2)
		report.Patterns = append(report.Patterns, fmt.Sprintf(
			"Stake credential %s controls %d addresses holding %.1f%% of circulating supply",
			abbreviate(credential), g.addresses, pct))
	}

	return points
}

// applyCoordinatedBlocks applies the same-block transaction-burst heuristic
func (a *Analyzer) applyCoordinatedBlocks(report *domain.TokenRiskReport, txs []blockfrost.Transaction) {
	byBlock := make(map[int64]int)
	for _, tx := range txs {
		byBlock[tx.BlockHeight]++
	}

	blocks := make([]int64, 0, len(byBlock))
	for height := range byBlock {
		blocks = append(blocks, height)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	points := 0.0
	for _, height := range blocks {
		count := byBlock[height]
		if count < coordinatedBlockMinTxs {
			continue
		}
		report.CoordinatedBlocks++
		points += math.Min(coordinatedBlockMaxPts, float64(count)/3)
		report.Patterns = append(report.Patterns, fmt.Sprintf(
			"Block %d contains %d transactions of this token", height, count))
	}

	report.RiskScore = clampScore(report.RiskScore + points)
}

// scoreIdenticalBalances applies the identical-holding heuristic: many
// wallets holding the exact same amount suggests scripted distribution
func (a *Analyzer) scoreIdenticalBalances(report *domain.TokenRiskReport, regular []domain.Holder) float64 {
	byBalance := make(map[int64]int)
	for _, h := range regular {
		if h.Quantity > 0 {
			byBalance[h.Quantity]++
		}
	}

	balances := make([]int64, 0, len(byBalance))
	for balance := range byBalance {
		balances = append(balances, balance)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i] > balances[j] })

	points := 0.0
	for _, balance := range balances {
		count := byBalance[balance]
		if count < identicalMinHolders {
			continue
		}
		points += math.Min(identicalMaxPoints, float64(count)/5)
		report.Patterns = append(report.Patterns, fmt.Sprintf(
			"%d holders share an identical balance of %d units", count, balance))
	}

	return points
}

// noDataReport returns a well-formed zero-score report with an explanation
func noDataReport(policyID, assetName, reason string) *domain.TokenRiskReport {
	return &domain.TokenRiskReport{
		PolicyID:  policyID,
		AssetName: assetName,
		RiskScore: 0,
		Patterns:  []string{reason},
		Holders:   []domain.Holder{},
	}
}

func isScriptAddress(addr string) bool {
	return hasPrefix(addr, domain.ScriptAddressPrefix) || hasPrefix(addr, domain.ScriptAddressPrefixZ)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func clampScore(score float64) float64 {
	score = math.Round(score*10) / 10
	if score < 0 {
		return 0
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

func abbreviate(s string) string {
	if len(s) > 12 {
		return s[:6] + "..." + s[len(s)-4:]
	}
	return s
}

func truncateHolders(holders []domain.Holder, limit int) []domain.Holder {
	if len(holders) > limit {
		return holders[:limit]
	}
	return holders
}
