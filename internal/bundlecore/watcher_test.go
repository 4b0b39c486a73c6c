package bundlecore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hashA  = common.HexToHash("0x0a")
	hashB  = common.HexToHash("0x0b")
	noiseX = common.HexToHash("0xff")
)

func testSubmission(target uint64) BundleSubmissionResult {
	return BundleSubmissionResult{
		BundleID:    "0xbundle",
		TargetBlock: target,
		Transactions: []SignedTransaction{
			{Hash: hashA, Nonce: 1},
			{Hash: hashB, Nonce: 2},
		},
	}
}

func newTestWatcher(chain ChainReader, max int) (*Watcher, *sleepRecorder) {
	w := NewWatcher(chain, max, 12*time.Second, testLogger())
	rec := &sleepRecorder{}
	w.sleep = rec.sleep
	return w, rec
}

func TestWatcher_FirstPollHitDoesNotSleep(t *testing.T) {
	chain := &fakeChain{
		heads:  []uint64{101},
		blocks: map[uint64][]common.Hash{101: {noiseX, hashA, hashB}},
	}
	w, rec := newTestWatcher(chain, 5)

	out, err := w.Watch(context.Background(), testSubmission(101))
	require.NoError(t, err)
	assert.True(t, out.Included)
	assert.Equal(t, uint64(101), out.BlockNumber)
	assert.Equal(t, []common.Hash{hashA, hashB}, out.TxHashes)
	assert.Equal(t, 1, out.Attempts)
	assert.Empty(t, rec.calls)
}

func TestWatcher_UnmatchedPollsExactlyMaxTimes(t *testing.T) {
	chain := &fakeChain{
		heads:  []uint64{100, 101, 102, 103, 104, 105, 106},
		blocks: map[uint64][]common.Hash{},
	}
	w, rec := newTestWatcher(chain, 5)

	out, err := w.Watch(context.Background(), testSubmission(101))
	require.NoError(t, err)
	assert.False(t, out.Included)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, chain.headCalls)
	assert.Len(t, rec.calls, 4, "no sleep after the final poll")
	for _, d := range rec.calls {
		assert.Equal(t, 12*time.Second, d)
	}
}

func TestWatcher_ScansSkippedBlocksOnce(t *testing.T) {
	chain := &fakeChain{
		heads:  []uint64{100, 103},
		blocks: map[uint64][]common.Hash{102: {hashA, noiseX, hashB}},
	}
	w, rec := newTestWatcher(chain, 5)

	out, err := w.Watch(context.Background(), testSubmission(101))
	require.NoError(t, err)
	assert.True(t, out.Included)
	assert.Equal(t, uint64(102), out.BlockNumber)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, chain.bodyCalls, "blocks 101 and 102 scanned, 103 never reached")
	assert.Len(t, rec.calls, 1)
}

func TestWatcher_RequiresAllHashesInOrder(t *testing.T) {
	tests := map[string][]common.Hash{
		"reversed":     {hashB, hashA},
		"only admin":   {hashA},
		"only presale": {noiseX, hashB},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			chain := &fakeChain{
				heads:  []uint64{101},
				blocks: map[uint64][]common.Hash{101: body},
			}
			w, _ := newTestWatcher(chain, 2)

			out, err := w.Watch(context.Background(), testSubmission(101))
			require.NoError(t, err)
			assert.False(t, out.Included)
			assert.Equal(t, 1, chain.bodyCalls, "block 101 is scanned only once")
		})
	}
}

func TestWatcher_ChainReadErrorPropagates(t *testing.T) {
	boom := errors.New("rpc unavailable")

	w, rec := newTestWatcher(&fakeChain{headErr: boom}, 5)
	_, err := w.Watch(context.Background(), testSubmission(101))
	assert.ErrorIs(t, err, ErrChainRead)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.calls)

	w, _ = newTestWatcher(&fakeChain{heads: []uint64{101}, blockErr: boom}, 5)
	_, err = w.Watch(context.Background(), testSubmission(101))
	assert.ErrorIs(t, err, ErrChainRead)
}

func TestWatcher_ContextCancelAbortsWait(t *testing.T) {
	chain := &fakeChain{heads: []uint64{100}, blocks: map[uint64][]common.Hash{}}
	w := NewWatcher(chain, 5, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Watch(ctx, testSubmission(101))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, chain.headCalls)
}

func TestWatcher_RetriesBlockNotYetServed(t *testing.T) {
	chain := &fakeChain{
		heads:   []uint64{102},
		pending: map[uint64]int{101: 1},
		blocks:  map[uint64][]common.Hash{101: {hashA, hashB}},
	}
	w, rec := newTestWatcher(chain, 3)

	out, err := w.Watch(context.Background(), testSubmission(101))
	require.NoError(t, err)
	assert.True(t, out.Included)
	assert.Equal(t, uint64(101), out.BlockNumber)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, chain.bodyCalls, "block 102 is not read before 101 is served")
	assert.Len(t, rec.calls, 1)
}
