package bundlecore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	chain  *fakeChain
	status *fakeStatus
	relay  *fakeRelay
	calls  *fakeCalls
	sink   *recordingSink
	sleeps *sleepRecorder
}

func newHarness() *harness {
	includeAt := uint64(101)
	chain := &fakeChain{
		heads:    []uint64{100, 101},
		nonces:   []uint64{5},
		gasPrice: new(big.Int).Mul(big.NewInt(20), gwei),
		blocks:   map[uint64][]common.Hash{},
		include:  &includeAt,
	}
	return &harness{
		chain:  chain,
		status: &fakeStatus{status: ContractStatus{Owner: testOwner}},
		relay:  &fakeRelay{resp: RelayResponse{BundleID: "0xbundle"}, chain: chain},
		calls:  &fakeCalls{},
		sink:   &recordingSink{},
		sleeps: &sleepRecorder{},
	}
}

func (h *harness) orchestrator(t *testing.T, relay Relay) *Orchestrator {
	t.Helper()
	signer, err := NewSignerFromHex(testKeyHex, testLogger())
	require.NoError(t, err)
	if relay == nil {
		relay = h.relay
	}
	cfg := testConfig()
	cfg.MaxWaitBlocks = 3
	o, err := NewOrchestrator(cfg, Deps{
		Chain:  h.chain,
		Status: h.status,
		Relay:  relay,
		Calls:  h.calls,
		Signer: signer,
		Sink:   h.sink,
	}, testLogger())
	require.NoError(t, err)
	o.newRunID = func() string { return "run-1" }
	o.now = fixedNow
	o.watcher.sleep = h.sleeps.sleep
	o.stats.now = fixedNow
	return o
}

func TestOrchestrator_IncludedRun(t *testing.T) {
	h := newHarness()
	relay := &statsRelay{fakeRelay: h.relay, stats: map[string]any{"isSimulated": true}}

	out, err := h.orchestrator(t, relay).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "0xbundle", out.BundleID)
	assert.Equal(t, uint64(101), out.TargetBlock)
	assert.True(t, out.Included)
	assert.Equal(t, uint64(101), out.InclusionBlock)
	assert.Equal(t, rawHashes(h.relay.sent[0]), out.TxHashes)
	require.NotNil(t, out.Stats)
	assert.Empty(t, out.Stats.Error)
	assert.Equal(t, true, out.Stats.Relay["isSimulated"])
	assert.Equal(t, 1, relay.calls)

	assert.Equal(t, []State{
		StateStatusChecked, StateBuilt, StateSubmitted, StateIncluded, StateReported, StateDone,
	}, h.sink.states())
	assert.Equal(t, StateInit, h.sink.events[0].From)
	assert.Empty(t, h.sleeps.calls)
}

func TestOrchestrator_BundleShape(t *testing.T) {
	h := newHarness()
	_, err := h.orchestrator(t, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.relay.sent, 1)
	require.Len(t, h.relay.sent[0], 2)
	want := new(big.Int).Mul(big.NewInt(22), gwei)
	for i, tx := range decodeTxs(t, h.relay.sent[0]) {
		assert.Equal(t, uint64(5+i), tx.Nonce())
		assert.Equal(t, 0, want.Cmp(tx.GasPrice()))
	}
}

func TestOrchestrator_NonOwnerNeverBuilds(t *testing.T) {
	h := newHarness()
	h.status.status.Owner = common.HexToAddress("0x1234")

	out, err := h.orchestrator(t, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StateStatusChecked, stepErr.Step)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ErrPrecondition.Error(), out.ErrorKind)
	assert.Zero(t, h.calls.builds())
	assert.Zero(t, h.chain.nonceCall)
	assert.Empty(t, h.relay.sent)
	assert.Equal(t, []State{StateStatusChecked, StateFailed}, h.sink.states())
}

func TestOrchestrator_RejectedSubmissionSkipsWatcher(t *testing.T) {
	h := newHarness()
	h.relay.resp = RelayResponse{}

	out, err := h.orchestrator(t, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionRejected)
	assert.Equal(t, StateFailed, out.State)
	assert.False(t, out.Included)
	assert.Empty(t, out.BundleID)
	assert.Equal(t, 1, h.chain.headCalls, "only the submit head read")
	assert.Zero(t, h.chain.bodyCalls)
	assert.Nil(t, out.Stats)
}

func TestOrchestrator_StatsFailureKeepsVerdict(t *testing.T) {
	h := newHarness()
	relay := &statsRelay{fakeRelay: h.relay, err: errors.New("relay busy")}

	out, err := h.orchestrator(t, relay).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.True(t, out.Included)
	assert.Len(t, out.TxHashes, 2)
	require.NotNil(t, out.Stats)
	assert.Equal(t, "relay busy", out.Stats.Error)
	assert.Equal(t, "submitted", out.Stats.Status)
}

func TestOrchestrator_NotIncluded(t *testing.T) {
	h := newHarness()
	h.chain.include = nil
	h.chain.heads = []uint64{100, 101, 102, 103}

	out, err := h.orchestrator(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.False(t, out.Included)
	assert.Empty(t, out.TxHashes)
	assert.Len(t, h.sleeps.calls, 2)
	assert.Contains(t, h.sink.states(), StateNotIncluded)
	assert.Equal(t, ErrStatsUnsupported.Error(), out.Stats.Error)
}

func TestOrchestrator_StaleNonce(t *testing.T) {
	h := newHarness()
	h.chain.nonces = []uint64{5, 6}

	out, err := h.orchestrator(t, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionRejected)
	assert.Equal(t, StateFailed, out.State)
	assert.Empty(t, h.relay.sent)
}

func TestOrchestrator_FailureKinds(t *testing.T) {
	boom := errors.New("boom")

	t.Run("status read", func(t *testing.T) {
		h := newHarness()
		h.status.err = boom
		_, err := h.orchestrator(t, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrChainRead)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []State{StateFailed}, h.sink.states())
	})

	t.Run("relay transport", func(t *testing.T) {
		h := newHarness()
		h.relay.err = boom
		out, err := h.orchestrator(t, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrRelayTransport)
		assert.Equal(t, ErrRelayTransport.Error(), out.ErrorKind)
	})

	t.Run("watch read", func(t *testing.T) {
		h := newHarness()
		h.chain.include = nil
		h.chain.blockErr = boom
		_, err := h.orchestrator(t, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrChainRead)

		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, StateSubmitted, stepErr.Step)
	})

	t.Run("aborted", func(t *testing.T) {
		h := newHarness()
		h.chain.include = nil
		h.chain.heads = []uint64{100}
		h.sleeps.err = context.Canceled
		_, err := h.orchestrator(t, nil).Run(context.Background())
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOrchestrator_Preview(t *testing.T) {
	h := newHarness()
	bundle, err := h.orchestrator(t, nil).Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), bundle.TargetBlock)
	require.NoError(t, bundle.CheckNonces(5))
	assert.Empty(t, h.relay.sent)
	assert.Empty(t, h.sink.events)
}

func TestNewOrchestrator_RequiresDeps(t *testing.T) {
	_, err := NewOrchestrator(testConfig(), Deps{}, testLogger())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewOrchestrator(DefaultConfig(), Deps{}, testLogger())
	assert.ErrorIs(t, err, ErrConfiguration)
}
