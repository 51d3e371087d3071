// Package engine implements the market lifecycle state machine and the
// stake/fee/payout accounting of the settlement engine as pure functions over
// domain records. It performs no I/O; the service layer runs each operation
// inside one host-ledger transaction and drives the custody adapter with the
// amounts the engine computes.
package engine

import (
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/kleoslabs/kleos/internal/domain"
)

// accumulatorBits bounds every effective-stake accumulator. Values are held
// in 256-bit integers but the accounting domain is 128-bit; a checked add
// past this bound fails instead of silently growing.
const accumulatorBits = 128

func checkedAdd64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

// feeSplit computes the protocol fee and the distributable pool for a settled
// market: fee = floor(totalRaw * feeBps / 10000), pool = totalRaw - fee.
// The multiply is overflow-checked in 64 bits; fee + pool == totalRaw exactly
// for every feeBps in [0, 10000].
func feeSplit(totalRaw uint64, feeBps uint16) (fee, pool uint64, err error) {
	hi, lo := bits.Mul64(totalRaw, uint64(feeBps))
	if hi != 0 {
		return 0, 0, domain.ErrMathOverflow
	}
	fee = lo / domain.BpsDenominator
	return fee, totalRaw - fee, nil
}

// addEffective adds v into the accumulator acc in place, failing with
// MathOverflow when the result no longer fits the 128-bit accounting domain.
func addEffective(acc *uint256.Int, v *uint256.Int) error {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(acc, v); overflow || sum.BitLen() > accumulatorBits {
		return domain.ErrMathOverflow
	}
	acc.Set(&sum)
	return nil
}

// payoutShare computes floor(effective * pool / denominator) with wide
// intermediate precision. The result must fit in 64 bits; denominator must be
// nonzero (callers guard it with the zero-winning-denominator check).
func payoutShare(effective *uint256.Int, pool uint64, denominator *uint256.Int) (uint64, error) {
	var product uint256.Int
	if _, overflow := product.MulOverflow(effective, uint256.NewInt(pool)); overflow {
		return 0, domain.ErrMathOverflow
	}

	var quotient uint256.Int
	quotient.Div(&product, denominator)
	if !quotient.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return quotient.Uint64(), nil
}

// maxEffective returns the effective-stake cap for a raw stake:
// raw * MaxMultiplier, computed in wide precision so large raw stakes do not
// wrap.
func maxEffective(rawStake uint64) *uint256.Int {
	var cap256 uint256.Int
	cap256.Mul(uint256.NewInt(rawStake), uint256.NewInt(domain.MaxMultiplier))
	return &cap256
}
