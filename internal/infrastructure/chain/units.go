package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Curve tokens and the native quote currency both use 18 decimals.
const tokenDecimals = 18

// FromWei converts an on-chain integer amount to display units.
// Decimal arithmetic keeps the shift exact before the final float
// conversion.
func FromWei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	return decimal.NewFromBigInt(wei, -tokenDecimals).InexactFloat64()
}

// ToWei converts a display-unit amount to the on-chain integer
// representation, truncating anything below one wei.
func ToWei(amount float64) *big.Int {
	return decimal.NewFromFloat(amount).Shift(tokenDecimals).Truncate(0).BigInt()
}
