package shares

import "math/big"

// priceScale is the 18-decimal fixed-point unit. A price of exactly
// priceScale means one share redeems one wei of yield balance.
var priceScale = mustBigInt("1000000000000000000")

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// PriceScale returns a copy of the fixed-point unit for callers outside the
// package.
func PriceScale() *big.Int {
	return new(big.Int).Set(priceScale)
}
