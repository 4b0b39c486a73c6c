package bundlecore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// CallEncoder produces the ABI payloads for the two bundled calls.
type CallEncoder interface {
	EnablePresaleCall() ([]byte, error)
	PresaleCall(quantity *big.Int) ([]byte, error)
}

// Builder assembles the admin call and the dependent paid call.
type Builder struct {
	cfg   Config
	calls CallEncoder
	log   logrus.FieldLogger
}

// NewBuilder creates a transaction builder.
func NewBuilder(cfg Config, calls CallEncoder, log logrus.FieldLogger) *Builder {
	return &Builder{
		cfg:   cfg,
		calls: calls,
		log:   log.WithField("component", "builder"),
	}
}

// Build returns [enablePresale, presale] with nonces nonce and nonce+1, both
// priced at ceil(gasPrice * (1 + premium)).
func (b *Builder) Build(nonce uint64, gasPrice *big.Int) ([]PendingTransaction, error) {
	if b.cfg.Contract == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is absent", ErrConfiguration)
	}
	if b.cfg.ChainID == nil || b.cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id is absent", ErrConfiguration)
	}
	if gasPrice == nil || gasPrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: observed gas price is invalid", ErrConfiguration)
	}
	premium := b.cfg.GasPremium
	if premium == nil {
		premium = new(big.Rat)
	}
	quantity := b.cfg.Quantity
	if quantity == nil {
		quantity = big.NewInt(1)
	}
	unitPrice := b.cfg.UnitPrice
	if unitPrice == nil {
		unitPrice = new(big.Int)
	}

	adminData, err := b.calls.EnablePresaleCall()
	if err != nil {
		return nil, fmt.Errorf("%w: encode enablePresale: %w", ErrConfiguration, err)
	}
	presaleData, err := b.calls.PresaleCall(quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: encode presale: %w", ErrConfiguration, err)
	}

	price := PremiumGasPrice(gasPrice, premium)
	value := new(big.Int).Mul(unitPrice, quantity)

	txs := []PendingTransaction{
		b.pending(nonce, adminData, b.cfg.AdminGasLimit, price, new(big.Int)),
		b.pending(nonce+1, presaleData, b.cfg.PresaleGasLimit, price, value),
	}

	b.log.WithFields(logrus.Fields{
		"nonce":         nonce,
		"gas_price":     FormatGwei(gasPrice) + " gwei",
		"bundle_price":  FormatGwei(price) + " gwei",
		"presale_value": FormatETH(value) + " ETH",
	}).Info("Bundle transactions built")

	return txs, nil
}

func (b *Builder) pending(nonce uint64, data []byte, gas uint64, price, value *big.Int) PendingTransaction {
	to := b.cfg.Contract
	return PendingTransaction{
		To:       &to,
		Data:     data,
		GasLimit: gas,
		GasPrice: new(big.Int).Set(price),
		Nonce:    nonce,
		Value:    value,
		ChainID:  new(big.Int).Set(b.cfg.ChainID),
	}
}
