package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTransaction is an unsigned legacy call. Values are copied on build
// and must not be mutated afterwards.
type PendingTransaction struct {
	To       *common.Address
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
	Value    *big.Int
	ChainID  *big.Int
}

// SignedTransaction is the RLP payload handed to the relay plus the hash the
// transaction will carry once mined.
type SignedTransaction struct {
	Raw   []byte
	Hash  common.Hash
	Nonce uint64
}

// Bundle is an ordered set of signed transactions aimed at a single block.
type Bundle struct {
	Transactions []SignedTransaction
	TargetBlock  uint64
}

// CheckNonces verifies the bundle nonces run exactly expected, expected+1, ...
func (b Bundle) CheckNonces(expected uint64) error {
	if len(b.Transactions) == 0 {
		return fmt.Errorf("empty bundle")
	}
	for i, tx := range b.Transactions {
		want := expected + uint64(i)
		if tx.Nonce != want {
			return fmt.Errorf("tx %d: nonce %d, sender expects %d", i, tx.Nonce, want)
		}
	}
	return nil
}

// Hashes returns the transaction hashes in bundle order.
func (b Bundle) Hashes() []common.Hash {
	out := make([]common.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = tx.Hash
	}
	return out
}

// BundleSubmissionResult is the handle returned by an accepted submission.
type BundleSubmissionResult struct {
	BundleID     string
	TargetBlock  uint64
	Transactions []SignedTransaction
}

// InclusionOutcome is the watcher's verdict.
type InclusionOutcome struct {
	Included    bool
	BlockNumber uint64
	TxHashes    []common.Hash
	Attempts    int
}

// ContractStatus is read fresh on every run.
type ContractStatus struct {
	PresaleActive bool
	Owner         common.Address
	CallerIsOwner bool
}

// BundleStats is the best-effort relay view of a submitted bundle.
type BundleStats struct {
	BundleID  string         `json:"bundleHash"`
	Timestamp time.Time      `json:"timestamp"`
	Status    string         `json:"status"`
	Relay     map[string]any `json:"relay,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Outcome is the terminal record of one run.
type Outcome struct {
	RunID          string        `json:"runId"`
	State          State         `json:"state"`
	BundleID       string        `json:"bundleHash,omitempty"`
	TargetBlock    uint64        `json:"targetBlock,omitempty"`
	Included       bool          `json:"included"`
	InclusionBlock uint64        `json:"inclusionBlock,omitempty"`
	TxHashes       []common.Hash `json:"txHashes"`
	Stats          *BundleStats  `json:"stats,omitempty"`
	ErrorKind      string        `json:"errorKind,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// ErrBlockUnavailable is returned by ChainReader.BlockTxHashes for a block
// the node reports as head but cannot serve yet. It is not an error kind; the
// watcher retries the block on the next poll.
var ErrBlockUnavailable = errors.New("block not yet available")

// ChainReader is the subset of a JSON-RPC node the core reads from.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockTxHashes(ctx context.Context, number uint64) ([]common.Hash, error)
}

// StatusReader reads the presale contract's owner and sale flag.
type StatusReader interface {
	Status(ctx context.Context, caller common.Address) (ContractStatus, error)
}

// RelayResponse is what a relay said about a bundle. An empty BundleID means
// the relay declined it; Reason then carries whatever the relay reported.
type RelayResponse struct {
	BundleID string
	Reason   string
}

// Relay accepts bundles. A non-nil error is a transport fault, never a
// relay-side rejection.
type Relay interface {
	SendBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (RelayResponse, error)
}

// StatsSource is implemented by relays that expose bundle statistics.
type StatsSource interface {
	BundleStats(ctx context.Context, bundleID string, targetBlock uint64) (map[string]any, error)
}
