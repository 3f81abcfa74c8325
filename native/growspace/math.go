package growspace

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

func addUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmetic, a, b)
	}
	return a + b, nil
}

func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrArithmetic, a, b)
	}
	return a - b, nil
}

func mulUint64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, fmt.Errorf("%w: %d * %d", ErrArithmetic, a, b)
	}
	return a * b, nil
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func addAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(cloneAmount(a), cloneAmount(b))
	if overflow {
		return nil, fmt.Errorf("%w: balance overflow", ErrArithmetic)
	}
	return sum, nil
}

// subAmount debits b from a, reporting ErrFunding when a cannot cover it.
func subAmount(a, b *uint256.Int) (*uint256.Int, error) {
	left := cloneAmount(a)
	right := cloneAmount(b)
	if left.Lt(right) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrFunding, left.Dec(), right.Dec())
	}
	return new(uint256.Int).Sub(left, right), nil
}
