package common

import (
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "rocket/core/errors"
)

// CheckAmount rejects nil, negative and wider-than-256-bit amounts.
func CheckAmount(op, field string, v *big.Int) error {
	if v == nil {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, field+" is required")
	}
	if v.Sign() < 0 {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, field+" must not be negative")
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return coreerrors.New(coreerrors.ErrInvalidArgument, op, field+" exceeds 256 bits")
	}
	return nil
}

// CheckedAdd returns a+b, failing when the sum leaves the 256-bit range.
func CheckedAdd(op string, a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, coreerrors.New(coreerrors.ErrInvalidArgument, op, "operand exceeds 256 bits")
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, coreerrors.New(coreerrors.ErrInvalidArgument, op, "operand exceeds 256 bits")
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, coreerrors.New(coreerrors.ErrInvalidArgument, op, "sum exceeds 256 bits")
	}
	return sum.ToBig(), nil
}

// CloneBig copies v, mapping nil to zero.
func CloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
