package chaintypes

import "time"

// Vertex is a DAG node wrapping one ingested block.
type Vertex struct {
	Block      *Block
	References []Hash
	Wave       uint64
	Timestamp  time.Time
	Processed  bool
}

// Wave groups blocks that share a header wave_number; it is the unit of
// finalization.
type Wave struct {
	Number    uint64
	Blocks    map[Hash]struct{}
	Finalized bool
	CreatedAt time.Time
}

// Committee is the stake-weighted validator set eligible to produce blocks
// during its lifetime.
type Committee struct {
	ID         uint64
	Validators []Address
	Weights    map[Address]uint64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
