package bundlecore

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOwner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	gwei         = big.NewInt(1_000_000_000)
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Contract = testContract
	cfg.ChainID = big.NewInt(11155111)
	cfg.BlockInterval = 0
	return cfg
}

type fakeCalls struct {
	enableCalls  int
	presaleCalls int
	err          error
}

func (f *fakeCalls) EnablePresaleCall() ([]byte, error) {
	f.enableCalls++
	return []byte{0xa8, 0x6d, 0x6e, 0x9e}, f.err
}

func (f *fakeCalls) PresaleCall(q *big.Int) ([]byte, error) {
	f.presaleCalls++
	return append([]byte{0x53, 0x0e, 0x4b, 0x53}, common.LeftPadBytes(q.Bytes(), 32)...), f.err
}

func (f *fakeCalls) builds() int { return f.enableCalls + f.presaleCalls }

// fakeChain serves a scripted head sequence and per-block transaction lists.
type fakeChain struct {
	mu        sync.Mutex
	heads     []uint64
	headErr   error
	nonces    []uint64
	gasPrice  *big.Int
	blocks    map[uint64][]common.Hash
	blockErr  error
	pending   map[uint64]int
	headCalls int
	bodyCalls int
	nonceCall int
	// include places the next accepted bundle into this block.
	include *uint64
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headCalls++
	if f.headErr != nil {
		return 0, f.headErr
	}
	if len(f.heads) == 0 {
		return 0, errors.New("no head scripted")
	}
	h := f.heads[0]
	if len(f.heads) > 1 {
		f.heads = f.heads[1:]
	}
	return h, nil
}

func (f *fakeChain) NonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.nonces[0]
	if len(f.nonces) > 1 {
		f.nonces = f.nonces[1:]
	}
	f.nonceCall++
	return n, nil
}

func (f *fakeChain) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) BlockTxHashes(ctx context.Context, number uint64) ([]common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodyCalls++
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	if f.pending[number] > 0 {
		f.pending[number]--
		return nil, ErrBlockUnavailable
	}
	return f.blocks[number], nil
}

type fakeStatus struct {
	status ContractStatus
	err    error
}

func (f *fakeStatus) Status(ctx context.Context, caller common.Address) (ContractStatus, error) {
	st := f.status
	st.CallerIsOwner = st.Owner == caller
	return st, f.err
}

// fakeRelay records submissions and, when chain is set, mines accepted
// bundles into the block chosen by chain.include.
type fakeRelay struct {
	resp    RelayResponse
	err     error
	sent    [][][]byte
	targets []uint64
	chain   *fakeChain
}

func (r *fakeRelay) SendBundle(ctx context.Context, rawTxs [][]byte, target uint64) (RelayResponse, error) {
	r.sent = append(r.sent, rawTxs)
	r.targets = append(r.targets, target)
	if r.err == nil && r.resp.BundleID != "" && r.chain != nil && r.chain.include != nil {
		r.chain.mu.Lock()
		r.chain.blocks[*r.chain.include] = append([]common.Hash{common.HexToHash("0xaa")}, rawHashes(rawTxs)...)
		r.chain.mu.Unlock()
	}
	return r.resp, r.err
}

// statsRelay adds a StatsSource to fakeRelay.
type statsRelay struct {
	*fakeRelay
	stats map[string]any
	err   error
	calls int
	panic bool
}

func (r *statsRelay) BundleStats(ctx context.Context, id string, block uint64) (map[string]any, error) {
	r.calls++
	if r.panic {
		panic("boom")
	}
	return r.stats, r.err
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(ev Event) { s.events = append(s.events, ev) }

func (s *recordingSink) states() []State {
	out := make([]State, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.To
	}
	return out
}

type sleepRecorder struct {
	calls []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func rawHashes(raws [][]byte) []common.Hash {
	out := make([]common.Hash, 0, len(raws))
	for _, raw := range raws {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			panic(err)
		}
		out = append(out, tx.Hash())
	}
	return out
}

func decodeTxs(t interface{ Fatalf(string, ...any) }, raws [][]byte) []*types.Transaction {
	out := make([]*types.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			t.Fatalf("decode tx: %v", err)
		}
		out = append(out, tx)
	}
	return out
}
