// Package chain adapts a JSON-RPC node to the reads the bundle core needs.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

// Backend is the slice of ethclient.Client used here.
type Backend interface {
	ethereum.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// RPCCaller issues raw JSON-RPC calls; *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Client reads chain state through a Backend. Block bodies are read through
// the raw caller so unknown transaction types never need decoding.
type Client struct {
	backend Backend
	rpc     RPCCaller
	closer  func()
	log     logrus.FieldLogger
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string, log logrus.FieldLogger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	ec := ethclient.NewClient(rpcClient)
	c := NewClient(ec, rpcClient, log)
	c.closer = ec.Close
	return c, nil
}

// NewClient wraps an existing backend and the raw caller behind it.
func NewClient(backend Backend, caller RPCCaller, log logrus.FieldLogger) *Client {
	return &Client{
		backend: backend,
		rpc:     caller,
		log:     log.WithField("component", "chain"),
	}
}

// Close releases the underlying connection, if this client owns one.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Backend exposes the wrapped backend for contract bindings.
func (c *Client) Backend() Backend {
	return c.backend
}

// ChainID returns the chain ID reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return id, nil
}

// BlockNumber returns the current head height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return n, nil
}

// NonceAt returns the account nonce at the latest mined block.
func (c *Client) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	n, err := c.backend.NonceAt(ctx, account, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return n, nil
}

// GasPrice returns the node's suggested legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return p, nil
}

// blockHashes is the part of a eth_getBlockByNumber(n, false) response we
// read; with fullTx=false the transactions are plain hashes.
type blockHashes struct {
	Number       hexutil.Uint64 `json:"number"`
	Transactions []common.Hash  `json:"transactions"`
}

// BlockTxHashes returns the transaction hashes of block number, in block
// order. A block the node does not have yet yields
// bundlecore.ErrBlockUnavailable.
func (c *Client) BlockTxHashes(ctx context.Context, number uint64) ([]common.Hash, error) {
	if c.rpc == nil {
		return nil, fmt.Errorf("failed to get block %d: no rpc connection", number)
	}
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}
	if s := strings.TrimSpace(string(raw)); s == "" || s == "null" {
		return nil, fmt.Errorf("block %d: %w", number, bundlecore.ErrBlockUnavailable)
	}
	var body blockHashes
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode block %d: %w", number, err)
	}
	out := body.Transactions
	if out == nil {
		out = []common.Hash{}
	}
	c.log.WithFields(logrus.Fields{
		"block": number,
		"txs":   len(out),
	}).Debug("Fetched block transaction hashes")
	return out, nil
}
