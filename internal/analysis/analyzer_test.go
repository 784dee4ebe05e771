package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/providers/blockfrost"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const testPolicy = "11223344556677889900112233445566778899001122334455667788"

// fakeChain is a canned chain-data provider
type fakeChain struct {
	assets       []blockfrost.Asset
	addresses    map[string][]blockfrost.AssetAddress
	details      map[string]*blockfrost.AddressDetail
	addressTxs   map[string][]blockfrost.Transaction
	assetTxs     []blockfrost.Transaction
	utxos        map[string]*blockfrost.TxUTxOs
	holdersErr   error
	assetsErr    error
	assetTxsErr  error
}

func (f *fakeChain) AssetsByPolicy(_ context.Context, _ string) ([]blockfrost.Asset, error) {
	return f.assets, f.assetsErr
}

func (f *fakeChain) AssetAddresses(_ context.Context, unit string) ([]blockfrost.AssetAddress, error) {
	if f.holdersErr != nil {
		return nil, f.holdersErr
	}
	return f.addresses[unit], nil
}

func (f *fakeChain) AddressDetail(_ context.Context, address string) (*blockfrost.AddressDetail, error) {
	if detail, ok := f.details[address]; ok {
		return detail, nil
	}
	return nil, errors.New("address not found")
}

func (f *fakeChain) AddressTransactions(_ context.Context, address string, _ int) ([]blockfrost.Transaction, error) {
	return f.addressTxs[address], nil
}

func (f *fakeChain) AssetTransactions(_ context.Context, _ string, _ int) ([]blockfrost.Transaction, error) {
	return f.assetTxs, f.assetTxsErr
}

func (f *fakeChain) TransactionUTxOs(_ context.Context, txHash string) (*blockfrost.TxUTxOs, error) {
	if utxos, ok := f.utxos[txHash]; ok {
		return utxos, nil
	}
	return nil, errors.New("tx not found")
}

type stoppedClock struct{}

func (stoppedClock) Now() time.Time                     { return time.Unix(1000, 0) }
func (stoppedClock) Since(time.Time) time.Duration      { return 0 }
func (stoppedClock) Sleep(time.Duration)                {}
func (stoppedClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, 0)
	return ch
}

func newTestAnalyzer(cfg Config, chain blockfrost.Client) *Analyzer {
	return NewAnalyzer(cfg, chain, stoppedClock{})
}

// testAddr builds a valid mainnet base address whose stake key is filled
// with the given byte
func testAddr(t *testing.T, stake byte) string {
	t.Helper()
	raw := make([]byte, 57)
	raw[0] = 0x0<<4 | 0x1
	raw[1] = stake // vary the payment part too
	for i := 29; i < 57; i++ {
		raw[i] = stake
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode("addr", converted)
	require.NoError(t, err)
	return addr
}

func holder(credentialTag string, quantity int64) domain.Holder {
	return domain.Holder{
		Address:         "addr1-" + credentialTag,
		StakeCredential: "stake-" + credentialTag,
		Quantity:        quantity,
	}
}

func TestBuildReport_TopHolderFifteenPercent(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	// One regular holder with 15% of a 1,000,000-unit circulating supply;
	// every other balance is distinct and every credential unique, so no
	// other heuristic fires.
	holders := []domain.Holder{
		holder("top", 150000),
		holder("h1", 110000),
		holder("h2", 109000),
		holder("h3", 108000),
		holder("h4", 107000),
		holder("h5", 106000),
		holder("h6", 105000),
		holder("h7", 103000),
		holder("h8", 102000),
	}

	report := a.buildReport(testPolicy, "746b", holders)

	assert.Equal(t, int64(1000000), report.ObservedSupply)
	assert.Equal(t, int64(1000000), report.AssumedTotalSupply)
	assert.Equal(t, int64(1000000), report.CirculatingSupply)
	assert.Equal(t, 15.0, report.TopHolderPercentage)
	assert.Equal(t, 5.0, clampScore(report.RiskScore)) // min(5, 15/2)
	assert.Contains(t, report.Patterns, "Top holder controls 15.0% of circulating supply")
	assert.Equal(t, 9, report.TotalHolders)
	assert.Equal(t, 9, report.RegularHolders)
}

func TestScoreIdenticalBalances_SixOfAKind(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	regular := []domain.Holder{
		holder("h1", 1000), holder("h2", 1000), holder("h3", 1000),
		holder("h4", 1000), holder("h5", 1000), holder("h6", 1000),
	}
	report := &domain.TokenRiskReport{Patterns: []string{}}

	points := a.scoreIdenticalBalances(report, regular)

	assert.InDelta(t, 1.2, points, 1e-9) // min(2, 6/5)
	assert.Contains(t, report.Patterns, "6 holders share an identical balance of 1000 units")
}

func TestScoreIdenticalBalances_BelowThreshold(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	regular := []domain.Holder{
		holder("h1", 1000), holder("h2", 1000), holder("h3", 1000), holder("h4", 1000),
	}
	report := &domain.TokenRiskReport{Patterns: []string{}}

	assert.Zero(t, a.scoreIdenticalBalances(report, regular))
	assert.Empty(t, report.Patterns)
}

func TestScoreStakeClusters(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	// One stake credential controls four addresses holding 12% combined.
	regular := []domain.Holder{
		{Address: "addr-1", StakeCredential: "shared", Quantity: 30},
		{Address: "addr-2", StakeCredential: "shared", Quantity: 30},
		{Address: "addr-3", StakeCredential: "shared", Quantity: 30},
		{Address: "addr-4", StakeCredential: "shared", Quantity: 30},
		{Address: "addr-5", StakeCredential: "other", Quantity: 880},
	}
	report := &domain.TokenRiskReport{CirculatingSupply: 1000, Patterns: []string{}}

	points := a.scoreStakeClusters(report, regular)

	assert.InDelta(t, 2.0, points, 1e-9) // min(3, 4/2)
	assert.Equal(t, 1, report.StakeClusters)
	require.Len(t, report.Patterns, 1)
	assert.Contains(t, report.Patterns[0], "controls 4 addresses")
}

func TestScoreStakeClusters_ThreeAddressesDoNotTrigger(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	regular := []domain.Holder{
		{Address: "addr-1", StakeCredential: "shared", Quantity: 100},
		{Address: "addr-2", StakeCredential: "shared", Quantity: 100},
		{Address: "addr-3", StakeCredential: "shared", Quantity: 100},
	}
	report := &domain.TokenRiskReport{CirculatingSupply: 1000, Patterns: []string{}}

	assert.Zero(t, a.scoreStakeClusters(report, regular))
	assert.Zero(t, report.StakeClusters)
}

func TestBuildReport_InfrastructureExcluded(t *testing.T) {
	infraAddr := "addr1-burn-wallet"
	a := newTestAnalyzer(Config{InfrastructureAddresses: []string{infraAddr}}, &fakeChain{})

	holders := []domain.Holder{
		{Address: infraAddr, StakeCredential: "stake-infra", Quantity: 900000},
		holder("h1", 60000),
		holder("h2", 40000),
	}

	report := a.buildReport(testPolicy, "746b", holders)

	assert.Equal(t, 1, report.InfrastructureHolders)
	assert.Equal(t, int64(900000), report.InfrastructureSupply)
	// Circulating supply ignores the infrastructure balance entirely.
	assert.Equal(t, int64(100000), report.CirculatingSupply)
	assert.Equal(t, 60.0, report.TopHolderPercentage)
	assert.Contains(t, report.Patterns,
		"✓ Excluded 1 known infrastructure wallets (burn/vesting) from risk scoring")

	// The burn wallet never shows up as a concentration pattern.
	for _, p := range report.Patterns {
		assert.NotContains(t, p, "90.0%")
	}
}

func TestBuildReport_LiquidityPoolClassification(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	holders := []domain.Holder{
		// Script-held pool with 40% of supply and no stake credential.
		{Address: "addr1w9pool", StakeCredential: "", Quantity: 400},
		holder("h1", 350),
		holder("h2", 250),
	}

	report := a.buildReport(testPolicy, "746b", holders)

	assert.Equal(t, 1, report.LiquidityPools)
	assert.Equal(t, int64(400), report.LiquiditySupply)
	// Pools stay in circulating supply.
	assert.Equal(t, int64(1000), report.CirculatingSupply)
	assert.Equal(t, 2, report.RegularHolders)
	// Top regular holder is the 350 one.
	assert.Equal(t, 35.0, report.TopHolderPercentage)
}

func TestBuildReport_SmallCredentiallessHolderIsRegular(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	holders := []domain.Holder{
		holder("h1", 950),
		{Address: "addr1unresolved", StakeCredential: "", Quantity: 50},
	}

	report := a.buildReport(testPolicy, "746b", holders)

	// 5% without a credential is below the pool share bar: regular holder.
	assert.Zero(t, report.LiquidityPools)
	assert.Equal(t, 2, report.RegularHolders)
}

func TestBuildReport_SupplyFloorCorrection(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	holders := make([]domain.Holder, 120)
	for i := range holders {
		holders[i] = holder(fmt.Sprintf("h%d", i), int64(1000+i))
	}

	report := a.buildReport(testPolicy, "746b", holders)

	assert.Equal(t, int64(1000000000), report.AssumedTotalSupply)
	assert.Less(t, report.ObservedSupply, report.AssumedTotalSupply)
}

func TestBuildReport_NoFloorBelowHundredHolders(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	holders := []domain.Holder{holder("h1", 600), holder("h2", 400)}
	report := a.buildReport(testPolicy, "746b", holders)

	assert.Equal(t, int64(1000), report.AssumedTotalSupply)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-3))
	assert.Equal(t, 1.2, clampScore(1.234999))
	assert.Equal(t, 10.0, clampScore(17.4))
	assert.Equal(t, 9.9, clampScore(9.94))
}

func TestApplyCoordinatedBlocks(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})
	report := &domain.TokenRiskReport{Patterns: []string{}}

	txs := []blockfrost.Transaction{
		{TxHash: "t1", BlockHeight: 500},
		{TxHash: "t2", BlockHeight: 500},
		{TxHash: "t3", BlockHeight: 500},
		{TxHash: "t4", BlockHeight: 501},
	}

	a.applyCoordinatedBlocks(report, txs)

	assert.Equal(t, 1, report.CoordinatedBlocks)
	assert.InDelta(t, 1.0, report.RiskScore, 1e-9) // min(2, 3/3)
	assert.Contains(t, report.Patterns, "Block 500 contains 3 transactions of this token")
}

func TestAnalyzeToken_EndToEnd(t *testing.T) {
	unit := testPolicy + "746b"
	addrTop := testAddr(t, 0x01)
	addrSmall := testAddr(t, 0x02)

	chain := &fakeChain{
		addresses: map[string][]blockfrost.AssetAddress{unit: {
			{Address: addrTop, Quantity: "800"},
			{Address: addrSmall, Quantity: "200"},
		}},
	}

	a := newTestAnalyzer(Config{}, chain)
	report, err := a.AnalyzeToken(context.Background(), testPolicy, "746b")
	require.NoError(t, err)

	assert.Equal(t, testPolicy, report.PolicyID)
	assert.Equal(t, "746b", report.AssetName)
	assert.Equal(t, 2, report.TotalHolders)
	assert.Equal(t, 80.0, report.TopHolderPercentage)
	assert.Equal(t, 5.0, report.RiskScore)
	require.Len(t, report.Holders, 2)
	assert.Equal(t, domain.HolderCategoryRegular, report.Holders[0].Category)
	assert.NotEmpty(t, report.Holders[0].StakeCredential)
}

func TestAnalyzeToken_AutoDetectsAssetWithMostHolders(t *testing.T) {
	unitA := testPolicy + "aa"
	unitB := testPolicy + "bb"

	chain := &fakeChain{
		assets: []blockfrost.Asset{{Asset: unitA}, {Asset: unitB}},
		addresses: map[string][]blockfrost.AssetAddress{
			unitA: {{Address: testAddr(t, 0x01), Quantity: "10"}},
			unitB: {
				{Address: testAddr(t, 0x02), Quantity: "10"},
				{Address: testAddr(t, 0x03), Quantity: "20"},
			},
		},
	}

	a := newTestAnalyzer(Config{}, chain)
	report, err := a.AnalyzeToken(context.Background(), testPolicy, "")
	require.NoError(t, err)

	assert.Equal(t, "bb", report.AssetName)
	assert.Equal(t, 2, report.TotalHolders)
}

func TestAnalyzeToken_NoAssets(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	report, err := a.AnalyzeToken(context.Background(), testPolicy, "")
	require.NoError(t, err)

	assert.Zero(t, report.RiskScore)
	assert.Equal(t, []string{"No asset found under this policy"}, report.Patterns)
}

func TestAnalyzeToken_NoHolders(t *testing.T) {
	a := newTestAnalyzer(Config{}, &fakeChain{})

	report, err := a.AnalyzeToken(context.Background(), testPolicy, "746b")
	require.NoError(t, err)

	assert.Zero(t, report.RiskScore)
	assert.Empty(t, report.Holders)
	assert.Equal(t, []string{"No holders found for this asset"}, report.Patterns)
}

func TestAnalyzeToken_HolderFetchFailureDegrades(t *testing.T) {
	chain := &fakeChain{holdersErr: errors.New("rate limited")}
	a := newTestAnalyzer(Config{}, chain)

	report, err := a.AnalyzeToken(context.Background(), testPolicy, "746b")
	require.NoError(t, err)
	assert.Zero(t, report.RiskScore)
}

func TestAnalyzeToken_TotalScoreClamped(t *testing.T) {
	unit := testPolicy + "746b"

	// Stack everything: a dominant holder, a four-address stake cluster with
	// a large combined share, identical balances and coordinated blocks.
	addresses := []blockfrost.AssetAddress{
		{Address: testAddr(t, 0x01), Quantity: "500000"},
	}
	sharedAddrs := make([]string, 0, 6)
	for i := byte(0); i < 6; i++ {
		raw := make([]byte, 57)
		raw[0] = 0x0<<4 | 0x1
		raw[1] = i // distinct payment parts
		for j := 29; j < 57; j++ {
			raw[j] = 0x77 // one shared stake key
		}
		converted, err := bech32.ConvertBits(raw, 8, 5, true)
		require.NoError(t, err)
		addr, err := bech32.Encode("addr", converted)
		require.NoError(t, err)
		sharedAddrs = append(sharedAddrs, addr)
		addresses = append(addresses, blockfrost.AssetAddress{Address: addr, Quantity: "50000"})
	}

	txs := make([]blockfrost.Transaction, 0, 12)
	for i := 0; i < 12; i++ {
		txs = append(txs, blockfrost.Transaction{
			TxHash:      "t" + strconv.Itoa(i),
			BlockHeight: int64(100 + i/6), // two blocks with 6 txs each
		})
	}

	chain := &fakeChain{
		addresses: map[string][]blockfrost.AssetAddress{unit: addresses},
		assetTxs:  txs,
	}

	a := newTestAnalyzer(Config{}, chain)
	report, err := a.AnalyzeToken(context.Background(), testPolicy, "746b")
	require.NoError(t, err)

	assert.Equal(t, 10.0, report.RiskScore)
	assert.NotEmpty(t, sharedAddrs)
}
