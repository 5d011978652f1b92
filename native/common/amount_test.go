package common

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "rocket/core/errors"
)

func TestCheckAmount(t *testing.T) {
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	for _, v := range []*big.Int{nil, big.NewInt(-1), tooWide} {
		if err := CheckAmount("op", "amount", v); !errors.Is(err, coreerrors.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %v, got %v", v, err)
		}
	}
	if err := CheckAmount("op", "amount", big.NewInt(0)); err != nil {
		t.Fatalf("zero should be accepted: %v", err)
	}
}

func TestCheckedAdd(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if _, err := CheckedAdd("op", max, big.NewInt(1)); !errors.Is(err, coreerrors.ErrInvalidArgument) {
		t.Fatalf("expected overflow, got %v", err)
	}
	sum, err := CheckedAdd("op", big.NewInt(2), big.NewInt(3))
	if err != nil || sum.Int64() != 5 {
		t.Fatalf("unexpected sum %v err=%v", sum, err)
	}
}
