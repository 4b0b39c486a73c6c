// Package config loads run settings from flags, environment, .env files and
// an optional YAML file.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

const (
	// DefaultRelayURL is the Flashbots Sepolia relay.
	DefaultRelayURL = "https://relay-sepolia.flashbots.net"
	DefaultTimeout  = 5 * time.Minute
)

// Settings keeps all configuration options as the user wrote them. Numeric
// amounts stay strings until CoreConfig so they are never rounded.
type Settings struct {
	RPCURL             string
	PrivateKeyHex      string
	ContractAddress    string
	ChainID            string
	RelayURL           string
	FlashbotsAuthPKHex string
	BlockInterval      time.Duration
	MaxWaitBlocks      int
	GasPremium         string
	AdminGasLimit      uint64
	PresaleGasLimit    uint64
	UnitPriceWei       string
	Quantity           string
	LogLevel           string
	Timeout            time.Duration
	PushgatewayURL     string
	NetcheckBlocks     int

	// malformed numeric values seen by Load, reported by Validate
	parseErrs []error
}

// aliases lists extra environment names accepted for a key, in priority order.
var aliases = map[string][]string{
	"rpc_url":          {"SEPOLIA_RPC_URL"},
	"contract_address": {"OPENSPACE_NFT_ADDRESS"},
	"relay_url":        {"FLASHBOT_RELAY_URL"},
}

// Load reads settings from v, falling back to lower_case and alias
// environment keys for anything v has not seen.
func Load(v *viper.Viper) Settings {
	get := func(key, def string) string {
		if v != nil && v.IsSet(key) {
			if s := strings.TrimSpace(v.GetString(key)); s != "" {
				return s
			}
		}
		keys := append([]string{strings.ToUpper(key), key}, aliases[key]...)
		for _, k := range keys {
			if s := strings.TrimSpace(os.Getenv(k)); s != "" {
				return s
			}
		}
		return def
	}

	st := Settings{}
	malformed := func(key, s, what string) {
		st.parseErrs = append(st.parseErrs,
			fmt.Errorf("%w: %s %q is not %s", bundlecore.ErrConfiguration, key, s, what))
	}
	getInt := func(key string, def int) int {
		s := get(key, "")
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			malformed(key, s, "an integer")
			return def
		}
		return n
	}
	getUint64 := func(key string, def uint64) uint64 {
		s := get(key, "")
		if s == "" {
			return def
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			malformed(key, s, "a non-negative integer")
			return def
		}
		return n
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		s := get(key, "")
		if s == "" {
			return def
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		// bare numbers are seconds
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Second))
		}
		malformed(key, s, "a duration")
		return def
	}

	st.RPCURL = get("rpc_url", "")
	st.PrivateKeyHex = get("private_key", "")
	st.ContractAddress = get("contract_address", "")
	st.ChainID = get("chain_id", "")
	st.RelayURL = get("relay_url", DefaultRelayURL)
	st.FlashbotsAuthPKHex = get("flashbots_auth_pk", "")

	st.BlockInterval = getDuration("block_interval", bundlecore.DefaultBlockInterval)
	st.MaxWaitBlocks = getInt("max_wait_blocks", bundlecore.DefaultMaxWaitBlocks)
	st.GasPremium = get("gas_premium", bundlecore.DefaultGasPremium)
	st.AdminGasLimit = getUint64("admin_gas_limit", bundlecore.DefaultAdminGasLimit)
	st.PresaleGasLimit = getUint64("presale_gas_limit", bundlecore.DefaultPresaleGasLimit)
	st.UnitPriceWei = get("unit_price_wei", bundlecore.DefaultUnitPrice.String())
	st.Quantity = get("quantity", "1")

	st.LogLevel = get("log_level", "info")
	st.Timeout = getDuration("timeout", DefaultTimeout)
	st.PushgatewayURL = get("pushgateway_url", "")
	st.NetcheckBlocks = getInt("netcheck_blocks", 100)

	return st
}

// Validate checks the settings a run cannot start without. The private key
// is checked separately since the CLI may still prompt for it.
func (s Settings) Validate() error {
	if len(s.parseErrs) > 0 {
		return s.parseErrs[0]
	}
	if s.RPCURL == "" {
		return fmt.Errorf("%w: rpc_url is required", bundlecore.ErrConfiguration)
	}
	if err := checkURL("rpc_url", s.RPCURL); err != nil {
		return err
	}
	if err := checkURL("relay_url", s.RelayURL); err != nil {
		return err
	}
	if s.PushgatewayURL != "" {
		if err := checkURL("pushgateway_url", s.PushgatewayURL); err != nil {
			return err
		}
	}
	if !common.IsHexAddress(s.ContractAddress) {
		return fmt.Errorf("%w: contract_address %q is not a hex address", bundlecore.ErrConfiguration, s.ContractAddress)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", bundlecore.ErrConfiguration)
	}
	return nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s %q is not a valid URL", bundlecore.ErrConfiguration, key, raw)
	}
	return nil
}

// CoreConfig converts the settings into a bundlecore.Config. chainID is used
// when the settings leave chain_id empty (typically the node's own value).
func (s Settings) CoreConfig(chainID *big.Int) (bundlecore.Config, error) {
	cfg := bundlecore.DefaultConfig()

	if len(s.parseErrs) > 0 {
		return cfg, s.parseErrs[0]
	}
	if !common.IsHexAddress(s.ContractAddress) {
		return cfg, fmt.Errorf("%w: contract_address %q is not a hex address", bundlecore.ErrConfiguration, s.ContractAddress)
	}
	cfg.Contract = common.HexToAddress(s.ContractAddress)

	if s.ChainID != "" {
		id, ok := new(big.Int).SetString(s.ChainID, 10)
		if !ok {
			return cfg, fmt.Errorf("%w: chain_id %q is not an integer", bundlecore.ErrConfiguration, s.ChainID)
		}
		cfg.ChainID = id
	} else if chainID != nil {
		cfg.ChainID = new(big.Int).Set(chainID)
	}

	premium, ok := new(big.Rat).SetString(s.GasPremium)
	if !ok {
		return cfg, fmt.Errorf("%w: gas_premium %q is not a number", bundlecore.ErrConfiguration, s.GasPremium)
	}
	cfg.GasPremium = premium

	unitPrice, ok := new(big.Int).SetString(s.UnitPriceWei, 10)
	if !ok {
		return cfg, fmt.Errorf("%w: unit_price_wei %q is not an integer", bundlecore.ErrConfiguration, s.UnitPriceWei)
	}
	cfg.UnitPrice = unitPrice

	qty, ok := new(big.Int).SetString(s.Quantity, 10)
	if !ok {
		return cfg, fmt.Errorf("%w: quantity %q is not an integer", bundlecore.ErrConfiguration, s.Quantity)
	}
	cfg.Quantity = qty

	cfg.AdminGasLimit = s.AdminGasLimit
	cfg.PresaleGasLimit = s.PresaleGasLimit
	cfg.MaxWaitBlocks = s.MaxWaitBlocks
	cfg.BlockInterval = s.BlockInterval

	return cfg, cfg.Validate()
}
