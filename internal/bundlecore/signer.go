package bundlecore

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Signer signs bundle transactions with a single key held for the run.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	log     logrus.FieldLogger
}

// NewSigner wraps an already parsed key.
func NewSigner(key *ecdsa.PrivateKey, log logrus.FieldLogger) *Signer {
	return &Signer{
		key:     key,
		address: gethcrypto.PubkeyToAddress(key.PublicKey),
		log:     log.WithField("component", "signer"),
	}
}

// NewSignerFromHex parses a hex private key. The key text is never echoed in
// the returned error.
func NewSignerFromHex(keyHex string, log logrus.FieldLogger) (*Signer, error) {
	key, err := parseKey(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signing key", ErrConfiguration)
	}
	return NewSigner(key, log), nil
}

// parseKey accepts 64 hex digits, optionally 0x-prefixed and padded with
// whitespace.
func parseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(keyHex)
	if len(h) >= 2 && h[0] == '0' && (h[1] == 'x' || h[1] == 'X') {
		h = h[2:]
	}
	if h == "" {
		return nil, fmt.Errorf("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

// Address returns the sender address of every signed transaction.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign signs txs in order. Any malformed input fails the whole set.
func (s *Signer) Sign(txs []PendingTransaction) ([]SignedTransaction, error) {
	out := make([]SignedTransaction, 0, len(txs))
	for i, p := range txs {
		if err := checkPending(p); err != nil {
			return nil, fmt.Errorf("%w: tx %d: %w", ErrSigning, i, err)
		}
		signed, err := types.SignTx(legacyTx(p), types.LatestSignerForChainID(p.ChainID), s.key)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d: %w", ErrSigning, i, err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d: encode: %w", ErrSigning, i, err)
		}
		out = append(out, SignedTransaction{Raw: raw, Hash: signed.Hash(), Nonce: p.Nonce})

		s.log.WithFields(logrus.Fields{
			"index": i,
			"nonce": p.Nonce,
			"hash":  signed.Hash().Hex(),
		}).Debug("Transaction signed")
	}
	return out, nil
}

func checkPending(p PendingTransaction) error {
	switch {
	case p.To == nil:
		return fmt.Errorf("missing target address")
	case p.ChainID == nil || p.ChainID.Sign() <= 0:
		return fmt.Errorf("missing chain id")
	case p.GasPrice == nil:
		return fmt.Errorf("missing gas price")
	case p.GasLimit == 0:
		return fmt.Errorf("missing gas limit")
	case p.Value == nil:
		return fmt.Errorf("missing value")
	}
	return nil
}
