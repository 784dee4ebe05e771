package analysis

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/providers/blockfrost"
)

const (
	// relationTxCount bounds how many recent transactions are inspected per
	// top holder
	relationTxCount = 10
	// activityWindowSize groups top-holder activity into fixed windows
	activityWindowSize = 5 * time.Minute

	mediumSuspicionWallets = 3
	highSuspicionWallets   = 5
)

// holderActivity is everything the relationship heuristics need about one top
// holder, collected by a single worker.
type holderActivity struct {
	address  string
	txs      []blockfrost.Transaction
	utxos    map[string]*blockfrost.TxUTxOs
	fetchErr error
}

// AnalyzeWalletRelations runs the deep-dive over the top holders of an asset:
// wallets that received the token without buying it, direct transfers between
// top holders, and time-clustered activity. Provider failures for individual
// holders degrade the result rather than failing it.
func (a *Analyzer) AnalyzeWalletRelations(ctx context.Context, policyID, assetName string) (*domain.WalletRelationReport, error) {
	unit, assetName, err := a.resolveUnit(ctx, policyID, assetName)
	if err != nil {
		return nil, err
	}

	report := &domain.WalletRelationReport{
		PolicyID:        policyID,
		AssetName:       assetName,
		NonBuyers:       []string{},
		DirectTransfers: []domain.DirectTransfer{},
		ActivityWindows: []domain.ActivityWindow{},
	}

	addresses, err := a.chain.AssetAddresses(ctx, unit)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return report, nil
	}

	top := topHolderAddresses(addresses, a.config.TopHolderCount)
	topSet := make(map[string]bool, len(top))
	for _, addr := range top {
		topSet[addr] = true
	}

	activities := a.collectActivity(ctx, unit, top)

	seenTransfer := make(map[string]bool)
	for _, activity := range activities {
		if activity.fetchErr != nil {
			logger.WarnCtx(ctx, "Skipping holder in relationship analysis",
				zap.Error(activity.fetchErr), zap.String("address", activity.address))
			continue
		}

		if isNonBuyer(activity, unit) {
			report.NonBuyers = append(report.NonBuyers, activity.address)
		}

		for _, transfer := range directTransfers(activity, unit, topSet) {
			key := transfer.TxHash + "|" + transfer.From + "|" + transfer.To
			if seenTransfer[key] {
				continue
			}
			seenTransfer[key] = true
			report.DirectTransfers = append(report.DirectTransfers, transfer)
		}
	}
	sort.Strings(report.NonBuyers)
	sort.Slice(report.DirectTransfers, func(i, j int) bool {
		return report.DirectTransfers[i].TxHash < report.DirectTransfers[j].TxHash
	})

	report.ActivityWindows = activityWindows(activities)

	return report, nil
}

// collectActivity fetches transaction history and UTxO detail for each top
// holder through a bounded worker pool, pacing bursts to respect provider
// rate limits.
func (a *Analyzer) collectActivity(ctx context.Context, unit string, top []string) []holderActivity {
	pool := pond.NewPool(a.config.RelationWorkers)

	activities := make([]holderActivity, len(top))
	var mu sync.Mutex

	for i, addr := range top {
		i, addr := i, addr
		pool.Submit(func() {
			activity := holderActivity{
				address: addr,
				utxos:   make(map[string]*blockfrost.TxUTxOs),
			}

			txs, err := a.chain.AddressTransactions(ctx, addr, relationTxCount)
			if err != nil {
				activity.fetchErr = err
			} else {
				for n, tx := range txs {
					utxos, err := a.chain.TransactionUTxOs(ctx, tx.TxHash)
					if err != nil {
						logger.DebugCtx(ctx, "Failed to fetch tx detail",
							zap.Error(err), zap.String("tx_hash", tx.TxHash))
						continue
					}
					if !movesUnit(utxos, unit) {
						continue
					}
					activity.txs = append(activity.txs, tx)
					activity.utxos[tx.TxHash] = utxos
					if n%pacingBurst == pacingBurst-1 {
						a.clock.Sleep(a.config.PaceInterval)
					}
				}
			}

			mu.Lock()
			activities[i] = activity
			mu.Unlock()
		})
	}

	pool.StopAndWait()
	return activities
}

// isNonBuyer reports whether a holder received the token without any of their
// receiving transactions being funded from their own address.
func isNonBuyer(activity holderActivity, unit string) bool {
	received := false
	for _, utxos := range activity.utxos {
		if !outputsUnitTo(utxos, unit, activity.address) {
			continue
		}
		received = true
		for _, input := range utxos.Inputs {
			if input.Address == activity.address {
				return false
			}
		}
	}
	return received
}

// directTransfers finds transactions moving the token from this top holder to
// another top holder.
func directTransfers(activity holderActivity, unit string, topSet map[string]bool) []domain.DirectTransfer {
	var transfers []domain.DirectTransfer
	for hash, utxos := range activity.utxos {
		if !inputsUnitFrom(utxos, unit, activity.address) {
			continue
		}
		for _, output := range utxos.Outputs {
			if output.Address == activity.address || !topSet[output.Address] {
				continue
			}
			if carriesUnit(output.Amount, unit) {
				transfers = append(transfers, domain.DirectTransfer{
					From:   activity.address,
					To:     output.Address,
					TxHash: hash,
				})
			}
		}
	}
	return transfers
}

// activityWindows buckets top-holder transaction times into fixed windows and
// flags windows where several distinct holders were active.
func activityWindows(activities []holderActivity) []domain.ActivityWindow {
	walletsByWindow := make(map[int64]map[string]bool)
	for _, activity := range activities {
		for _, tx := range activity.txs {
			bucket := tx.BlockTime - tx.BlockTime%int64(activityWindowSize.Seconds())
			if walletsByWindow[bucket] == nil {
				walletsByWindow[bucket] = make(map[string]bool)
			}
			walletsByWindow[bucket][activity.address] = true
		}
	}

	buckets := make([]int64, 0, len(walletsByWindow))
	for bucket := range walletsByWindow {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	windows := []domain.ActivityWindow{}
	for _, bucket := range buckets {
		wallets := walletsByWindow[bucket]
		if len(wallets) < mediumSuspicionWallets {
			continue
		}

		suspicion := domain.SuspicionMedium
		if len(wallets) >= highSuspicionWallets {
			suspicion = domain.SuspicionHigh
		}

		sorted := make([]string, 0, len(wallets))
		for w := range wallets {
			sorted = append(sorted, w)
		}
		sort.Strings(sorted)

		windows = append(windows, domain.ActivityWindow{
			Start:     time.Unix(bucket, 0).UTC(),
			Wallets:   sorted,
			Suspicion: suspicion,
		})
	}

	return windows
}

// topHolderAddresses returns the addresses of the largest holders. The
// provider returns holders ordered by balance, but re-sorting keeps the
// selection correct when it does not.
func topHolderAddresses(addresses []blockfrost.AssetAddress, count int) []string {
	sorted := make([]blockfrost.AssetAddress, len(addresses))
	copy(sorted, addresses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return parseQuantity(sorted[i].Quantity) > parseQuantity(sorted[j].Quantity)
	})

	if len(sorted) > count {
		sorted = sorted[:count]
	}
	top := make([]string, len(sorted))
	for i, entry := range sorted {
		top[i] = entry.Address
	}
	return top
}

func parseQuantity(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func movesUnit(utxos *blockfrost.TxUTxOs, unit string) bool {
	for _, io := range utxos.Inputs {
		if carriesUnit(io.Amount, unit) {
			return true
		}
	}
	for _, io := range utxos.Outputs {
		if carriesUnit(io.Amount, unit) {
			return true
		}
	}
	return false
}

func outputsUnitTo(utxos *blockfrost.TxUTxOs, unit, address string) bool {
	for _, output := range utxos.Outputs {
		if output.Address == address && carriesUnit(output.Amount, unit) {
			return true
		}
	}
	return false
}

func inputsUnitFrom(utxos *blockfrost.TxUTxOs, unit, address string) bool {
	for _, input := range utxos.Inputs {
		if input.Address == address && carriesUnit(input.Amount, unit) {
			return true
		}
	}
	return false
}

func carriesUnit(amounts []blockfrost.TxAmount, unit string) bool {
	for _, amount := range amounts {
		if amount.Unit == unit {
			return true
		}
	}
	return false
}
