package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Watcher polls the chain head for a bounded number of blocks looking for a
// submitted bundle.
type Watcher struct {
	chain         ChainReader
	maxWaitBlocks int
	blockInterval time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	log           logrus.FieldLogger
}

// NewWatcher creates an inclusion watcher.
func NewWatcher(chain ChainReader, maxWaitBlocks int, blockInterval time.Duration, log logrus.FieldLogger) *Watcher {
	if maxWaitBlocks <= 0 {
		maxWaitBlocks = DefaultMaxWaitBlocks
	}
	return &Watcher{
		chain:         chain,
		maxWaitBlocks: maxWaitBlocks,
		blockInterval: blockInterval,
		sleep:         sleepCtx,
		log:           log.WithField("component", "watcher"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Watch polls at most maxWaitBlocks times. Every block in [target, head] is
// scanned once. The bundle counts as included only when every submitted hash
// is in one block, in bundle order.
func (w *Watcher) Watch(ctx context.Context, sub BundleSubmissionResult) (InclusionOutcome, error) {
	want := Bundle{Transactions: sub.Transactions}.Hashes()
	next := sub.TargetBlock

	for attempt := 1; attempt <= w.maxWaitBlocks; attempt++ {
		head, err := w.chain.BlockNumber(ctx)
		if err != nil {
			return InclusionOutcome{Attempts: attempt}, fmt.Errorf("%w: block number: %w", ErrChainRead, err)
		}
		w.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"head":         head,
			"target_block": sub.TargetBlock,
		}).Debug("Checking head")

		for ; next <= head; next++ {
			hashes, err := w.chain.BlockTxHashes(ctx, next)
			if errors.Is(err, ErrBlockUnavailable) {
				w.log.WithField("block", next).Debug("Block not served yet, retrying next poll")
				break
			}
			if err != nil {
				return InclusionOutcome{Attempts: attempt}, fmt.Errorf("%w: block %d: %w", ErrChainRead, next, err)
			}
			if containsInOrder(hashes, want) {
				w.log.WithFields(logrus.Fields{
					"block":   next,
					"attempt": attempt,
				}).Info("Bundle included")
				return InclusionOutcome{
					Included:    true,
					BlockNumber: next,
					TxHashes:    append([]common.Hash(nil), want...),
					Attempts:    attempt,
				}, nil
			}
			if partial := countPresent(hashes, want); partial > 0 {
				w.log.WithFields(logrus.Fields{
					"block":   next,
					"present": partial,
					"total":   len(want),
				}).Warn("Bundle transactions found out of order or incomplete")
			}
		}

		if attempt == w.maxWaitBlocks {
			break
		}
		if err := w.sleep(ctx, w.blockInterval); err != nil {
			return InclusionOutcome{Attempts: attempt}, fmt.Errorf("wait for next block: %w", err)
		}
	}

	w.log.WithField("attempts", w.maxWaitBlocks).Warn("Bundle not included within wait window")
	return InclusionOutcome{Attempts: w.maxWaitBlocks}, nil
}

// containsInOrder reports whether want is a subsequence of block.
func containsInOrder(block, want []common.Hash) bool {
	if len(want) == 0 {
		return false
	}
	i := 0
	for _, h := range block {
		if h == want[i] {
			i++
			if i == len(want) {
				return true
			}
		}
	}
	return false
}

func countPresent(block, want []common.Hash) int {
	set := make(map[common.Hash]struct{}, len(block))
	for _, h := range block {
		set[h] = struct{}{}
	}
	n := 0
	for _, h := range want {
		if _, ok := set[h]; ok {
			n++
		}
	}
	return n
}
