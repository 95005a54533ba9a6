package chaintypes

import (
	"bytes"
	"crypto/sha256"
)

// BlockHeader fixes the identity and provenance of a block. Hash is
// computed over a canonical byte encoding of the header with Hash itself
// set to the zero value; this encoding must stay bit-stable.
type BlockHeader struct {
	Hash        Hash
	ParentHash  Hash
	Height      uint64
	Timestamp   int64
	Validator   Address
	MerkleRoot  Hash
	StateRoot   Hash
	WaveNumber  uint64
	CommitteeID uint64
}

// CanonicalBytes encodes the header with Hash zeroed, in a fixed field
// order, for both hashing and signing contexts that need header identity.
func (h BlockHeader) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.Write(h.ParentHash[:])
	writeLE64(&buf, h.Height)
	writeLE64(&buf, uint64(h.Timestamp))
	buf.Write(h.Validator[:])
	buf.Write(h.MerkleRoot[:])
	buf.Write(h.StateRoot[:])
	writeLE64(&buf, h.WaveNumber)
	writeLE64(&buf, h.CommitteeID)
	return buf.Bytes()
}

// ComputeHash returns sha256 over CanonicalBytes; it does not mutate h.Hash.
func (h BlockHeader) ComputeHash() Hash {
	return sha256.Sum256(h.CanonicalBytes())
}

// Block is a node in the DAG: a header, its ordered transactions, and the
// set of prior blocks it references.
type Block struct {
	Header        BlockHeader
	Transactions  []Transaction
	DAGReferences []Hash
}

// MerkleRoot reduces transaction hashes pairwise with sha256, carrying an
// odd tail up unchanged. An empty list yields the zero hash.
func MerkleRoot(txs []Transaction) Hash {
	if len(txs) == 0 {
		return ZeroHash
	}
	layer := make([]Hash, len(txs))
	for i, tx := range txs {
		layer[i] = tx.Hash()
	}
	for len(layer) > 1 {
		next := make([]Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, pairHash(layer[i], layer[i+1]))
			} else {
				next = append(next, layer[i])
			}
		}
		layer = next
	}
	return layer[0]
}

func pairHash(a, b Hash) Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}
