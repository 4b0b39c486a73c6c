package bundlecore

import (
	"math/big"
)

// PremiumGasPrice returns ceil(price * (1 + premium)).
func PremiumGasPrice(price *big.Int, premium *big.Rat) *big.Int {
	if price == nil {
		return nil
	}
	factor := new(big.Rat).Add(big.NewRat(1, 1), premium)
	r := new(big.Rat).Mul(new(big.Rat).SetInt(price), factor)
	return ceilRat(r)
}

// ceilRat rounds a non-negative rational up to the next integer.
func ceilRat(r *big.Rat) *big.Int {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// FormatETH renders a wei amount as ETH with six decimals, for logs and the
// status output. A nil amount reads as "0".
func FormatETH(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000_000_000_000))
	return r.FloatString(6)
}

// FormatGwei renders a wei amount as gwei with two decimals.
func FormatGwei(x *big.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(new(big.Int).Set(x), big.NewInt(1_000_000_000))
	return r.FloatString(2)
}
