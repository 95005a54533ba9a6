// Package chaintypes holds the wire-level data model shared by every
// component of the node: hashes, addresses, blocks, transactions and the
// Mistborn asset model. Nothing in here talks to disk or the network.
package chaintypes

import (
	"encoding/hex"
	"fmt"
)

// Hash is a fixed 32-byte content identifier.
type Hash [32]byte

// ZeroHash is never traversed into; it marks "no reference".
var ZeroHash Hash

func (h Hash) IsZero() bool { return h == ZeroHash }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("chaintypes: decode hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("chaintypes: hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Address is the Ed25519 verifying-key derived identifier of an account.
type Address [32]byte

var ZeroAddress Address

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("chaintypes: decode address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("chaintypes: address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}
