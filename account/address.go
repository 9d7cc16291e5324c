// Package account defines the opaque participant identity used across the
// registry, ledger, market, and bank. An Address says nothing about the
// party behind it; authentication happens outside the core.
package account

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the fixed width of an address in bytes.
const AddressLength = 20

// Address identifies a participant account.
type Address [AddressLength]byte

// ZeroAddress is the null account. It never owns tickets and never
// receives funds; operations reject it where the spec requires a real
// recipient.
var ZeroAddress = Address{}

// HexToAddress parses a hex string (with or without 0x prefix) into an
// Address. The input must decode to exactly AddressLength bytes.
func HexToAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, fmt.Errorf("account: invalid address %q: %w", s, err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("account: invalid address length %d, want %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

// MustHexToAddress is HexToAddress for static inputs; it panics on error.
func MustHexToAddress(s string) Address {
	a, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Named derives a deterministic address from a label. Intended for tests
// and demos where readable fixtures matter more than key material.
func Named(label string) Address {
	var a Address
	copy(a[:], label)
	return a
}

// IsZero reports whether a is the null account.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for logs and CLI output.
func (a Address) Short() string {
	s := hex.EncodeToString(a[:])
	return "0x" + s[:8] + ".." + s[len(s)-4:]
}

// MarshalText implements encoding.TextMarshaler so addresses embed cleanly
// in JSON event payloads.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := HexToAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
