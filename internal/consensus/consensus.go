// Package consensus orchestrates the DAG block-production and ingestion
// loop described in §4.5-§4.8: pick tips, build a block from the mempool,
// and on ingestion record it in the DAG, advance its wave, apply its
// transactions, and rotate the committee once the current one is absent
// or expired. The component decomposition follows the teacher's
// consensus/engine.go dispatch shape; the scoring and wave rules are
// specific to this chain.
package consensus

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/committee"
	"github.com/hazechain/haze/internal/dag"
	"github.com/hazechain/haze/internal/mempool"
	"github.com/hazechain/haze/internal/state"
	"github.com/hazechain/haze/internal/tokenomics"
	"github.com/hazechain/haze/internal/wave"
)

// Config bounds how much work one block-production round does.
type Config struct {
	MaxTxPerBlock int
	MaxDAGParents int
}

func defaultConfig(cfg Config) Config {
	if cfg.MaxTxPerBlock <= 0 {
		cfg.MaxTxPerBlock = 500
	}
	if cfg.MaxDAGParents <= 0 {
		cfg.MaxDAGParents = 3
	}
	return cfg
}

// Engine wires the mempool, DAG, wave finalizer, committee manager, state
// machine and tokenomics collaborator into one block-production/ingestion
// pipeline.
type Engine struct {
	cfg Config

	mempool   *mempool.Pool
	dag       *dag.DAG
	wave      *wave.Manager
	committee *committee.Manager
	state     *state.Manager
	tk        tokenomics.Tokenomics
	log       *logrus.Logger
}

type Deps struct {
	Mempool    *mempool.Pool
	DAG        *dag.DAG
	Wave       *wave.Manager
	Committee  *committee.Manager
	State      *state.Manager
	Tokenomics tokenomics.Tokenomics
	Logger     *logrus.Logger
}

func New(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:       defaultConfig(cfg),
		mempool:   deps.Mempool,
		dag:       deps.DAG,
		wave:      deps.Wave,
		committee: deps.Committee,
		state:     deps.State,
		tk:        deps.Tokenomics,
		log:       logger,
	}
}

// CreateBlock drains the mempool and assembles a new block referencing the
// best-scoring DAG tips, leaving admission (ProcessBlock) as a separate
// step so a block can be gossiped before the producer ingests it itself.
func (e *Engine) CreateBlock(validator chaintypes.Address, now time.Time) (*chaintypes.Block, error) {
	txs := e.mempool.Drain(e.cfg.MaxTxPerBlock)

	refs := e.selectTips(now)
	parent := e.parentHash()

	waveNum := e.wave.CurrentWaveNumber()
	if w, ok := e.wave.Get(waveNum); ok && w.Finalized {
		waveNum++
	}

	height := uint64(0)
	if v, ok := e.dag.Get(parent); ok {
		height = v.Block.Header.Height + 1
	}

	header := chaintypes.BlockHeader{
		ParentHash:  parent,
		Height:      height,
		Timestamp:   now.Unix(),
		Validator:   validator,
		MerkleRoot:  chaintypes.MerkleRoot(txs),
		StateRoot:   e.state.ComputeStateRoot(),
		WaveNumber:  waveNum,
		CommitteeID: e.committee.CurrentID(),
	}
	header.Hash = header.ComputeHash()

	return &chaintypes.Block{
		Header:        header,
		Transactions:  txs,
		DAGReferences: refs,
	}, nil
}

// tipScore implements §4.5's selection rule: fewer existing references in
// favors a vertex (it is more "orphaned"), later waves and later
// timestamps are both preferred, so the chain converges on its newest
// frontier.
func tipScore(v *chaintypes.Vertex, incoming int) int64 {
	return -int64(incoming) + 100*int64(v.Wave) + v.Timestamp.Unix()
}

// selectTips returns up to MaxDAGParents vertices with no incoming edges
// (processed or not), highest score first, for use as a block's DAGReferences
// (§4.8 step 2). This is independent of parentHash (step 3): the two are
// separate computations that only coincide in a single linear chain.
func (e *Engine) selectTips(now time.Time) []chaintypes.Hash {
	snapshot := e.dag.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	type scored struct {
		hash  chaintypes.Hash
		score int64
	}
	var tips []scored
	for h, v := range snapshot {
		if e.dag.IncomingEdgeCount(h) > 0 {
			continue
		}
		tips = append(tips, scored{hash: h, score: tipScore(v, e.dag.IncomingEdgeCount(h))})
	}
	if len(tips) == 0 {
		// No leaf vertices (shouldn't happen outside pruning races); fall
		// back to scoring every known vertex.
		for h, v := range snapshot {
			tips = append(tips, scored{hash: h, score: tipScore(v, e.dag.IncomingEdgeCount(h))})
		}
	}
	sort.Slice(tips, func(i, j int) bool {
		if tips[i].score != tips[j].score {
			return tips[i].score > tips[j].score
		}
		return lessHash(tips[i].hash, tips[j].hash)
	})

	if len(tips) > e.cfg.MaxDAGParents {
		tips = tips[:e.cfg.MaxDAGParents]
	}
	refs := make([]chaintypes.Hash, len(tips))
	for i, t := range tips {
		refs[i] = t.hash
	}
	return refs
}

// parentHash implements §4.8 step 3, a rule distinct from selectTips: the
// highest-height block inside the highest finalized wave, else the
// highest-height block anywhere in the DAG, else the zero hash (genesis).
// Ties are broken by lowest hash for determinism.
func (e *Engine) parentHash() chaintypes.Hash {
	snapshot := e.dag.Snapshot()

	if w, ok := e.wave.HighestFinalizedWave(); ok {
		if hash, ok := highestHeightAmong(snapshot, w.Blocks); ok {
			return hash
		}
	}
	if hash, ok := highestHeightAmong(snapshot, nil); ok {
		return hash
	}
	return chaintypes.ZeroHash
}

// highestHeightAmong returns the highest-height vertex in snapshot, ties
// broken by lowest hash. A nil subset considers every vertex in snapshot;
// otherwise only hashes also present in subset are considered.
func highestHeightAmong(snapshot map[chaintypes.Hash]*chaintypes.Vertex, subset map[chaintypes.Hash]struct{}) (chaintypes.Hash, bool) {
	var best chaintypes.Hash
	var bestHeight uint64
	found := false
	for h, v := range snapshot {
		if subset != nil {
			if _, ok := subset[h]; !ok {
				continue
			}
		}
		height := v.Block.Header.Height
		if !found || height > bestHeight || (height == bestHeight && lessHash(h, best)) {
			best, bestHeight, found = h, height, true
		}
	}
	return best, found
}

func lessHash(a, b chaintypes.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ProcessBlock admits block: it is recorded in the DAG and its wave
// regardless of whether its transactions apply cleanly, so a semantically
// invalid block still occupies its structural position for tip-scoring
// and finalization purposes; only its state effects are skipped on
// failure (logged, not propagated), matching a DAG's tolerance for
// individually-faulty vertices.
func (e *Engine) ProcessBlock(block *chaintypes.Block, now time.Time) error {
	if err := e.dag.AddVertex(block, block.DAGReferences, block.Header.WaveNumber, now); err != nil {
		return err
	}
	e.wave.AddBlock(block.Header.WaveNumber, block.Header.Hash, now)

	if err := e.state.ApplyBlock(block); err != nil {
		e.log.WithError(err).WithField("block", block.Header.Hash.String()).Warn("block admitted to dag but state application failed")
	}

	e.dag.MarkProcessed(block.Header.Hash)
	e.mempool.RemoveMany(block.Transactions)

	e.maybeFinalize(block.Header.WaveNumber, now)
	e.maybeRotateCommittee(now)
	return nil
}

// maybeFinalize flips a wave's Finalized flag once it qualifies. Block
// rewards are no longer minted here: §4.3 mints them per-block, inside
// state.Manager.ApplyBlock, as soon as the block itself applies.
func (e *Engine) maybeFinalize(waveNum uint64, now time.Time) {
	if !e.wave.CheckFinalization(waveNum, now) {
		return
	}
	if err := e.wave.Finalize(waveNum); err != nil {
		e.log.WithError(err).Warn("wave finalization failed")
	}
}

func (e *Engine) maybeRotateCommittee(now time.Time) {
	if e.tk == nil || !e.committee.NeedsRotation(now) {
		return
	}
	top := e.tk.GetTopValidators(committee.DefaultSize)
	if len(top) == 0 {
		return
	}
	e.committee.Rotate(top, now)
}
