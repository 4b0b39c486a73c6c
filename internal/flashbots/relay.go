// Package flashbots is a minimal signed JSON-RPC client for Flashbots-style
// bundle relays.
package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

const defaultTimeout = 12 * time.Second

type Client struct {
	RelayURL string
	AuthKey  *ecdsa.PrivateKey // X-Flashbots-Signature key
	http     *http.Client
	log      logrus.FieldLogger
}

// SimResult is the outcome of eth_callBundle.
type SimResult struct {
	OK           bool
	Error        string
	TotalGasUsed uint64
	Results      []CallBundleTxResult
	RawJSON      string
}

// NewClient creates a relay client. An empty authPrivHex gets a throwaway
// identity key; the relay only uses it for reputation.
func NewClient(relayURL, authPrivHex string, log logrus.FieldLogger) (*Client, error) {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL == "" {
		return nil, fmt.Errorf("%w: relay url is empty", bundlecore.ErrConfiguration)
	}
	clientLog := log.WithFields(logrus.Fields{"component": "relay", "relay": relayURL})

	var (
		key *ecdsa.PrivateKey
		err error
	)
	if h := strings.TrimPrefix(strings.TrimSpace(authPrivHex), "0x"); h != "" {
		key, err = crypto.HexToECDSA(h)
		if err != nil {
			return nil, fmt.Errorf("%w: auth key is not a valid private key", bundlecore.ErrConfiguration)
		}
	} else {
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate auth key: %w", err)
		}
		clientLog.Debug("No relay auth key configured, using an ephemeral one")
	}

	return &Client{
		RelayURL: relayURL,
		AuthKey:  key,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      clientLog,
	}, nil
}

// AuthAddress is the identity the relay sees.
func (c *Client) AuthAddress() common.Address {
	return crypto.PubkeyToAddress(c.AuthKey.PublicKey)
}

// signBody produces the X-Flashbots-Signature value: the EIP-191 signature of
// the hex keccak of the body.
func (c *Client) signBody(b []byte) (string, error) {
	digest := accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(b))))
	sig, err := crypto.Sign(digest, c.AuthKey)
	if err != nil {
		return "", err
	}
	return c.AuthAddress().Hex() + ":" + hexutil.Encode(sig), nil
}

// call posts one JSON-RPC request. A decoded JSON-RPC error is returned as
// rpcErr with a nil err; err is reserved for transport and framing faults.
func (c *Client) call(ctx context.Context, method string, params any) (result json.RawMessage, rpcErr *RPCError, err error) {
	body, err := json.Marshal(rpcReq{Jsonrpc: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", method, err)
	}
	sig, err := c.signBody(body)
	if err != nil {
		return nil, nil, fmt.Errorf("sign %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RelayURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s failed: %w", c.RelayURL, err)
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	var out rpcResp
	if jerr := json.Unmarshal(rb, &out); jerr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, truncate(string(rb), 200))
		}
		return nil, nil, fmt.Errorf("decode %s response: %w", method, jerr)
	}
	if out.Error != nil {
		return out.Result, out.Error, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, truncate(string(rb), 200))
	}
	return out.Result, nil, nil
}

// SendBundle submits signed raw transactions via eth_sendBundle. A null
// result or a JSON-RPC error is a rejection, not an error.
func (c *Client) SendBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (bundlecore.RelayResponse, error) {
	params := []any{sendBundleParams{
		Txs:         encodeTxs(rawTxs),
		BlockNumber: hexutil.EncodeUint64(targetBlock),
	}}
	result, rpcErr, err := c.call(ctx, "eth_sendBundle", params)
	if err != nil {
		return bundlecore.RelayResponse{}, err
	}
	if rpcErr != nil {
		c.log.WithField("code", rpcErr.Code).Debug("eth_sendBundle returned an error")
		return bundlecore.RelayResponse{Reason: rpcErr.Error()}, nil
	}
	if isNull(result) {
		return bundlecore.RelayResponse{Reason: "relay returned null"}, nil
	}
	var res sendBundleResult
	if err := json.Unmarshal(result, &res); err != nil {
		return bundlecore.RelayResponse{}, fmt.Errorf("decode eth_sendBundle result: %w", err)
	}
	if res.BundleHash == "" {
		return bundlecore.RelayResponse{Reason: "relay returned no bundle hash"}, nil
	}
	return bundlecore.RelayResponse{BundleID: res.BundleHash}, nil
}

// BundleStats queries flashbots_getBundleStatsV2.
func (c *Client) BundleStats(ctx context.Context, bundleID string, targetBlock uint64) (map[string]any, error) {
	params := []any{bundleStatsParams{
		BundleHash:  bundleID,
		BlockNumber: hexutil.EncodeUint64(targetBlock),
	}}
	result, rpcErr, err := c.call(ctx, "flashbots_getBundleStatsV2", params)
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		if rpcErr.methodNotFound() {
			return nil, fmt.Errorf("%w: %v", bundlecore.ErrStatsUnsupported, rpcErr)
		}
		return nil, rpcErr
	}
	if isNull(result) {
		return nil, errors.New("relay returned no stats")
	}
	var stats map[string]any
	if err := json.Unmarshal(result, &stats); err != nil {
		return nil, fmt.Errorf("decode bundle stats: %w", err)
	}
	return stats, nil
}

// SimulateBundle runs eth_callBundle against the latest state.
func (c *Client) SimulateBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (*SimResult, error) {
	params := []any{callBundleParams{
		Txs:              encodeTxs(rawTxs),
		BlockNumber:      hexutil.EncodeUint64(targetBlock),
		StateBlockNumber: "latest",
	}}
	result, rpcErr, err := c.call(ctx, "eth_callBundle", params)
	if err != nil {
		return nil, err
	}
	res := &SimResult{RawJSON: string(result)}
	if rpcErr != nil {
		res.Error = rpcErr.Error()
		return res, nil
	}
	var cb callBundleResult
	if err := json.Unmarshal(result, &cb); err != nil {
		return nil, fmt.Errorf("decode eth_callBundle result: %w", err)
	}
	res.OK = true
	res.TotalGasUsed = cb.TotalGasUsed
	res.Results = cb.Results
	for _, r := range cb.Results {
		if r.Error != "" || r.Revert != "" {
			res.OK = false
			res.Error = firstNonEmpty(r.Revert, r.Error)
			break
		}
	}
	return res, nil
}

func encodeTxs(rawTxs [][]byte) []string {
	out := make([]string, len(rawTxs))
	for i, raw := range rawTxs {
		out[i] = hexutil.Encode(raw)
	}
	return out
}

func isNull(m json.RawMessage) bool {
	s := strings.TrimSpace(string(m))
	return s == "" || s == "null"
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(truncated)"
}
