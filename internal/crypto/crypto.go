// Package crypto provides the Ed25519 keypair, signing and address
// derivation primitives consumed by transactions and block headers.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/hazechain/haze/internal/chaintypes"
)

// ErrMalformed marks a Crypto error per §7: malformed key/signature bytes,
// distinct from a signature that verifies false.
var ErrMalformed = errors.New("crypto: malformed key or signature")

// KeyPair is a generated identity: the Ed25519 secret and its derived
// on-chain address.
type KeyPair struct {
	Secret  ed25519.PrivateKey
	Address chaintypes.Address
}

// GenerateKeypair creates a fresh Ed25519 identity.
func GenerateKeypair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate keypair: %w", err)
	}
	return &KeyPair{Secret: priv, Address: DeriveAddress(pub)}, nil
}

// DeriveAddress follows §4.1: a 32-byte pubkey becomes the address
// verbatim; any other length is sha256-compressed into one.
func DeriveAddress(pubkey []byte) chaintypes.Address {
	var addr chaintypes.Address
	if len(pubkey) == len(addr) {
		copy(addr[:], pubkey)
		return addr
	}
	h := sha256.Sum256(pubkey)
	return chaintypes.Address(h)
}

// Sign produces a 64-byte Ed25519 signature over msg.
func Sign(secret ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: secret key size %d", ErrMalformed, len(secret))
	}
	return ed25519.Sign(secret, msg), nil
}

// Verify checks sig for msg against address. Since every Ed25519 public
// key is exactly 32 bytes, the address derived by DeriveAddress is always
// the raw public key, so address doubles as the verifying key directly.
// Verify returns Err only for length/encoding errors; a mathematically
// invalid signature is a plain `false`, never an error and never `true`.
func Verify(address chaintypes.Address, msg, sig []byte) (bool, error) {
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: signature size %d", ErrMalformed, len(sig))
	}
	return ed25519.Verify(ed25519.PublicKey(address[:]), msg, sig), nil
}

// Wipe zeroes secret material before it is released, per §4.1.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
