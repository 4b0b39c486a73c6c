// Package presale binds the presale contract: calldata for the two bundle
// calls and the owner / sale-flag reads.
package presale

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
)

type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  ethereum.ContractCaller
	backoff time.Duration
	log     logrus.FieldLogger
}

func NewContract(address common.Address, caller ethereum.ContractCaller, log logrus.FieldLogger) (*Contract, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is empty", bundlecore.ErrConfiguration)
	}
	parsed, err := abi.JSON(strings.NewReader(presaleABI))
	if err != nil {
		return nil, fmt.Errorf("parse presale abi: %w", err)
	}
	return &Contract{
		address: address,
		abi:     parsed,
		caller:  caller,
		backoff: 200 * time.Millisecond,
		log:     log.WithFields(logrus.Fields{"component": "presale", "contract": address.Hex()}),
	}, nil
}

func (c *Contract) Address() common.Address { return c.address }

// EnablePresaleCall returns calldata for enablePresale().
func (c *Contract) EnablePresaleCall() ([]byte, error) {
	return c.abi.Pack("enablePresale")
}

// PresaleCall returns calldata for presale(quantity).
func (c *Contract) PresaleCall(quantity *big.Int) ([]byte, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	return c.abi.Pack("presale", quantity)
}

// Status reads owner() and isPresaleActive() at the latest block.
func (c *Contract) Status(ctx context.Context, caller common.Address) (bundlecore.ContractStatus, error) {
	var st bundlecore.ContractStatus

	out, err := c.view(ctx, "owner")
	if err != nil {
		return st, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return st, fmt.Errorf("owner(): unexpected type %T", out[0])
	}

	out, err = c.view(ctx, "isPresaleActive")
	if err != nil {
		return st, err
	}
	active, ok := out[0].(bool)
	if !ok {
		return st, fmt.Errorf("isPresaleActive(): unexpected type %T", out[0])
	}

	st.Owner = owner
	st.PresaleActive = active
	st.CallerIsOwner = owner == caller
	c.log.WithFields(logrus.Fields{
		"owner":          owner.Hex(),
		"presale_active": active,
		"caller_owner":   st.CallerIsOwner,
	}).Debug("Read contract status")
	return st, nil
}

func (c *Contract) view(ctx context.Context, method string) ([]any, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ret, err := c.callWithRetry(ctx, ethereum.CallMsg{To: &c.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", method, err)
	}
	out, err := c.abi.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("decode %s(): %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s(): expected 1 value, got %d", method, len(out))
	}
	return out, nil
}

// callWithRetry performs eth_call with a small exponential backoff on
// rate-limit responses.
func (c *Contract) callWithRetry(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	const maxAttempts = 3
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ret, err := c.caller.CallContract(ctx, msg, nil)
		if err == nil {
			return ret, nil
		}
		lastErr = err
		if !isRateLimitError(err) || attempt == maxAttempts {
			break
		}
		c.log.WithError(err).WithField("attempt", attempt).Debug("eth_call rate limited, backing off")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func isRateLimitError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}
