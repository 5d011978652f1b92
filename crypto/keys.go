package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of bech32 encoded accounts.
type AddressPrefix string

// RocketPrefix is used when rendering accounts in events, errors and APIs.
const RocketPrefix AddressPrefix = "rkt"

// Address represents a 20-byte account with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: b}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// FormatAccount renders a raw account using the rocket bech32 prefix.
func FormatAccount(addr [20]byte) string {
	return NewAddress(RocketPrefix, addr[:]).String()
}

// ParseAccount accepts either a bech32 account or a 0x-prefixed hex address.
func ParseAccount(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return out, fmt.Errorf("invalid hex address %q", trimmed)
		}
		copy(out[:], common.HexToAddress(trimmed).Bytes())
		return out, nil
	}
	decoded, err := DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

// HexAccount renders a raw account as a checksummed hex string.
func HexAccount(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

// ModuleAccount derives the fixed account of a built-in module from its name:
// the last 20 bytes of keccak256("rocket/module/" + name).
func ModuleAccount(name string) [20]byte {
	var out [20]byte
	digest := ethcrypto.Keccak256([]byte("rocket/module/" + strings.ToLower(strings.TrimSpace(name))))
	copy(out[:], digest[12:])
	return out
}
