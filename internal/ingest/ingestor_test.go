package ingest

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/address"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeFeed returns queued batches, then empty batches
type fakeFeed struct {
	batches [][]domain.LedgerEvent
	err     error
	calls   int
}

func (f *fakeFeed) FetchEvents(_ context.Context, _ domain.Point) ([]domain.LedgerEvent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

// fakeStore keeps holdings in memory and mimics the transactional contract:
// either the whole batch and the cursor apply, or nothing does
type fakeStore struct {
	store.Store

	cursor   domain.Point
	balances map[string]int64 // policy|credential -> balance
	applies  int
	failNext int
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: make(map[string]int64)}
}

func (s *fakeStore) GetSyncCursor(_ context.Context) (domain.Point, error) {
	return s.cursor, nil
}

func (s *fakeStore) ApplyHoldingDeltas(_ context.Context, deltas []store.HoldingDelta, point domain.Point) error {
	s.applies++
	if s.failNext > 0 {
		s.failNext--
		return errors.New("database unavailable")
	}
	for _, d := range deltas {
		key := d.PolicyID + "|" + d.StakeCredential
		s.balances[key] += d.Delta
		if s.balances[key] <= 0 {
			delete(s.balances, key)
		}
	}
	s.cursor = point
	return nil
}

// fakeClock never blocks
type fakeClock struct{}

func (fakeClock) Now() time.Time                  { return time.Unix(0, 0) }
func (fakeClock) Since(time.Time) time.Duration   { return 0 }
func (fakeClock) Sleep(time.Duration)             {}
func (fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, 0)
	return ch
}

// testAddr builds a valid mainnet base address delegating to a stake key
// filled with the given byte
func testAddr(t *testing.T, stake byte) string {
	t.Helper()
	raw := make([]byte, 57)
	raw[0] = 0x0<<4 | 0x1
	for i := 29; i < 57; i++ {
		raw[i] = stake
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode("addr", converted)
	require.NoError(t, err)
	return addr
}

// scriptAddr builds an enterprise address carrying no stake credential
func scriptAddr(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 29)
	raw[0] = 0x7<<4 | 0x1
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode("addr", converted)
	require.NoError(t, err)
	return addr
}

func utxo(addr, policy string, quantity int64) domain.UTxO {
	return domain.UTxO{
		TxID:    "tx",
		Address: addr,
		Assets:  []domain.AssetQuantity{{PolicyID: policy, AssetName: "746b", Quantity: quantity}},
	}
}

func newTestIngestor(feed *fakeFeed, st *fakeStore) *Ingestor {
	return New(Config{PollInterval: time.Millisecond, ErrorBackoff: time.Millisecond}, feed, st, fakeClock{})
}

func TestRunCycle_NetBalances(t *testing.T) {
	addrA := testAddr(t, 0x01)
	addrB := testAddr(t, 0x02)

	feed := &fakeFeed{batches: [][]domain.LedgerEvent{{
		{
			Point:  domain.Point{Slot: 10, Hash: "h10"},
			Insert: []domain.UTxO{utxo(addrA, "p1", 100), utxo(addrB, "p1", 50)},
		},
		{
			Point:  domain.Point{Slot: 11, Hash: "h11"},
			Insert: []domain.UTxO{utxo(addrB, "p1", 25)},
			Delete: []domain.UTxO{utxo(addrA, "p1", 40)},
		},
	}}}
	st := newFakeStore()

	ing := newTestIngestor(feed, st)
	require.NoError(t, ing.runCycle(context.Background()))

	credA, _ := addressCredential(t, addrA)
	credB, _ := addressCredential(t, addrB)
	assert.Equal(t, int64(60), st.balances["p1|"+credA])
	assert.Equal(t, int64(75), st.balances["p1|"+credB])
	assert.Equal(t, domain.Point{Slot: 11, Hash: "h11"}, st.cursor)
}

func TestRunCycle_DropsSpentOutWallets(t *testing.T) {
	addr := testAddr(t, 0x03)

	feed := &fakeFeed{batches: [][]domain.LedgerEvent{{
		{
			Point:  domain.Point{Slot: 5, Hash: "h5"},
			Insert: []domain.UTxO{utxo(addr, "p1", 10)},
			Delete: []domain.UTxO{utxo(addr, "p1", 10)},
		},
	}}}
	st := newFakeStore()

	ing := newTestIngestor(feed, st)
	require.NoError(t, ing.runCycle(context.Background()))

	assert.Empty(t, st.balances)
	assert.Equal(t, domain.Point{Slot: 5, Hash: "h5"}, st.cursor)
}

func TestRunCycle_SkipsCredentiallessAddresses(t *testing.T) {
	feed := &fakeFeed{batches: [][]domain.LedgerEvent{{
		{
			Point:  domain.Point{Slot: 3, Hash: "h3"},
			Insert: []domain.UTxO{utxo(scriptAddr(t), "p1", 500)},
		},
	}}}
	st := newFakeStore()

	ing := newTestIngestor(feed, st)
	require.NoError(t, ing.runCycle(context.Background()))

	// No trackable wallet, but the checkpoint still advances past the batch.
	assert.Empty(t, st.balances)
	assert.Equal(t, domain.Point{Slot: 3, Hash: "h3"}, st.cursor)
}

func TestRunCycle_DropsRedeliveredEvents(t *testing.T) {
	addr := testAddr(t, 0x04)

	events := []domain.LedgerEvent{
		{Point: domain.Point{Slot: 10, Hash: "h10"}, Insert: []domain.UTxO{utxo(addr, "p1", 100)}},
		{Point: domain.Point{Slot: 20, Hash: "h20"}, Insert: []domain.UTxO{utxo(addr, "p1", 1)}},
	}

	feed := &fakeFeed{batches: [][]domain.LedgerEvent{events}}
	st := newFakeStore()

	ing := newTestIngestor(feed, st)
	ing.cursor = domain.Point{Slot: 10, Hash: "h10"}

	require.NoError(t, ing.runCycle(context.Background()))

	cred, _ := addressCredential(t, addr)
	// The slot-10 event was already applied; only the slot-20 event counts.
	assert.Equal(t, int64(1), st.balances["p1|"+cred])
	assert.Equal(t, domain.Point{Slot: 20, Hash: "h20"}, st.cursor)
}

func TestRunCycle_AllRedelivered(t *testing.T) {
	addr := testAddr(t, 0x05)

	feed := &fakeFeed{batches: [][]domain.LedgerEvent{{
		{Point: domain.Point{Slot: 4, Hash: "h4"}, Insert: []domain.UTxO{utxo(addr, "p1", 9)}},
	}}}
	st := newFakeStore()

	ing := newTestIngestor(feed, st)
	ing.cursor = domain.Point{Slot: 4, Hash: "h4"}

	require.NoError(t, ing.runCycle(context.Background()))

	assert.Empty(t, st.balances)
	assert.Zero(t, st.applies)
}

func TestRunCycle_FailedBatchIsRetriedToSameState(t *testing.T) {
	addr := testAddr(t, 0x06)

	batch := []domain.LedgerEvent{
		{Point: domain.Point{Slot: 7, Hash: "h7"}, Insert: []domain.UTxO{utxo(addr, "p1", 30)}},
	}

	feed := &fakeFeed{batches: [][]domain.LedgerEvent{batch, batch}}
	st := newFakeStore()
	st.failNext = 1

	ing := newTestIngestor(feed, st)

	// First cycle fails mid-commit; cursor and balances stay untouched.
	require.Error(t, ing.runCycle(context.Background()))
	assert.Empty(t, st.balances)
	assert.True(t, st.cursor.IsOrigin())
	assert.True(t, ing.cursor.IsOrigin())

	// The retry replays the same batch and converges to the uninterrupted
	// outcome.
	require.NoError(t, ing.runCycle(context.Background()))
	cred, _ := addressCredential(t, addr)
	assert.Equal(t, int64(30), st.balances["p1|"+cred])
	assert.Equal(t, domain.Point{Slot: 7, Hash: "h7"}, st.cursor)
}

func TestRun_SingleFlight(t *testing.T) {
	feed := &fakeFeed{}
	st := newFakeStore()
	ing := newTestIngestor(feed, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	// Wait for the loop to take the running flag.
	require.Eventually(t, func() bool {
		return ing.running.Load()
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, ing.Run(ctx), domain.ErrIngestorRunning)

	cancel()
	require.NoError(t, <-done)

	// After shutdown the ingestor can start again.
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	require.NoError(t, ing.Run(ctx2))
}

func addressCredential(t *testing.T, addr string) (string, bool) {
	t.Helper()
	cred, ok := address.ResolveStakeCredential(addr)
	require.True(t, ok)
	return cred, ok
}
