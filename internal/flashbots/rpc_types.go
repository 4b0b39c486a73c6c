package flashbots

import (
	"encoding/json"
	"fmt"
)

type rpcReq struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the relay.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// methodNotFound covers the codes relays use for unknown methods.
func (e *RPCError) methodNotFound() bool {
	return e.Code == -32601
}

// ===== eth_sendBundle =====
type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// ===== eth_callBundle =====
type callBundleParams struct {
	Txs              []string `json:"txs"`
	BlockNumber      string   `json:"blockNumber"`
	StateBlockNumber string   `json:"stateBlockNumber"`
}

// CallBundleTxResult is the per-transaction part of a simulation.
type CallBundleTxResult struct {
	TxHash  string `json:"txHash"`
	GasUsed uint64 `json:"gasUsed"`
	Error   string `json:"error,omitempty"`
	Revert  string `json:"revert,omitempty"`
}

type callBundleResult struct {
	BundleHash       string               `json:"bundleHash"`
	CoinbaseDiff     string               `json:"coinbaseDiff"`
	TotalGasUsed     uint64               `json:"totalGasUsed"`
	StateBlockNumber uint64               `json:"stateBlockNumber"`
	Results          []CallBundleTxResult `json:"results"`
}

// ===== flashbots_getBundleStatsV2 =====
type bundleStatsParams struct {
	BundleHash  string `json:"bundleHash"`
	BlockNumber string `json:"blockNumber"`
}
