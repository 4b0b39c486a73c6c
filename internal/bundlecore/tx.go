package bundlecore

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// legacyTx turns a checked PendingTransaction into an unsigned type 0 tx.
func legacyTx(p PendingTransaction) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    p.Nonce,
		GasPrice: new(big.Int).Set(p.GasPrice),
		Gas:      p.GasLimit,
		To:       p.To,
		Value:    new(big.Int).Set(p.Value),
		Data:     p.Data,
	})
}

// RawTxs returns the signed payloads in bundle order.
func RawTxs(txs []SignedTransaction) [][]byte {
	out := make([][]byte, len(txs))
	for i, t := range txs {
		out[i] = t.Raw
	}
	return out
}
