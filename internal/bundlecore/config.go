package bundlecore

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults mirror the values the presale flow has always shipped with.
const (
	DefaultAdminGasLimit   uint64 = 100_000
	DefaultPresaleGasLimit uint64 = 150_000
	DefaultMaxWaitBlocks          = 5
	DefaultBlockInterval          = 12 * time.Second
	DefaultGasPremium             = "0.10"
)

// DefaultUnitPrice is 0.01 ETH.
var DefaultUnitPrice = big.NewInt(10_000_000_000_000_000)

// Config is everything the core needs for one run. It is built by the caller
// and passed to constructors; nothing is read from the environment here.
type Config struct {
	Contract        common.Address
	ChainID         *big.Int
	GasPremium      *big.Rat
	AdminGasLimit   uint64
	PresaleGasLimit uint64
	UnitPrice       *big.Int
	Quantity        *big.Int
	MaxWaitBlocks   int
	BlockInterval   time.Duration
}

// DefaultConfig returns a Config with every tunable set; Contract and ChainID
// are left empty since they have no sensible default.
func DefaultConfig() Config {
	premium, _ := new(big.Rat).SetString(DefaultGasPremium)
	return Config{
		GasPremium:      premium,
		AdminGasLimit:   DefaultAdminGasLimit,
		PresaleGasLimit: DefaultPresaleGasLimit,
		UnitPrice:       new(big.Int).Set(DefaultUnitPrice),
		Quantity:        big.NewInt(1),
		MaxWaitBlocks:   DefaultMaxWaitBlocks,
		BlockInterval:   DefaultBlockInterval,
	}
}

// Validate reports the first missing or out-of-range setting as ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case c.Contract == (common.Address{}):
		return fmt.Errorf("%w: contract address is required", ErrConfiguration)
	case c.ChainID == nil || c.ChainID.Sign() <= 0:
		return fmt.Errorf("%w: chain id is required", ErrConfiguration)
	case c.GasPremium == nil || c.GasPremium.Sign() < 0:
		return fmt.Errorf("%w: gas premium must be >= 0", ErrConfiguration)
	case c.AdminGasLimit == 0 || c.PresaleGasLimit == 0:
		return fmt.Errorf("%w: gas limits must be > 0", ErrConfiguration)
	case c.UnitPrice == nil || c.UnitPrice.Sign() < 0:
		return fmt.Errorf("%w: unit price must be >= 0", ErrConfiguration)
	case c.Quantity == nil || c.Quantity.Sign() <= 0:
		return fmt.Errorf("%w: quantity must be > 0", ErrConfiguration)
	case c.MaxWaitBlocks <= 0:
		return fmt.Errorf("%w: max wait blocks must be > 0", ErrConfiguration)
	case c.BlockInterval < 0:
		return fmt.Errorf("%w: block interval must be >= 0", ErrConfiguration)
	}
	return nil
}
