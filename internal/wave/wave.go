// Package wave implements the wave finalizer described in §4.6: a wave is
// finalizable once it has at least two blocks and has existed for at
// least golden_wave_threshold; finalize is a one-way, idempotent flag.
package wave

import (
	"sync"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
)

type Manager struct {
	mu               sync.RWMutex
	waves            map[uint64]*chaintypes.Wave
	goldenThreshold  time.Duration
	currentWaveNum   uint64
}

func New(goldenThreshold time.Duration) *Manager {
	return &Manager{
		waves:           make(map[uint64]*chaintypes.Wave),
		goldenThreshold: goldenThreshold,
	}
}

// AddBlock records blockHash under waveNum, creating the wave if absent.
func (m *Manager) AddBlock(waveNum uint64, blockHash chaintypes.Hash, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.waves[waveNum]
	if !ok {
		w = &chaintypes.Wave{Number: waveNum, Blocks: make(map[chaintypes.Hash]struct{}), CreatedAt: now}
		m.waves[waveNum] = w
	}
	w.Blocks[blockHash] = struct{}{}
	if waveNum > m.currentWaveNum {
		m.currentWaveNum = waveNum
	}
}

// CurrentWaveNumber is the highest wave number any block has been added to.
func (m *Manager) CurrentWaveNumber() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentWaveNum
}

// CheckFinalization reports whether waveNum currently satisfies the
// finalization threshold, without flipping the Finalized flag.
func (m *Manager) CheckFinalization(waveNum uint64, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.waves[waveNum]
	if !ok {
		return false
	}
	return len(w.Blocks) >= 2 && now.Sub(w.CreatedAt) >= m.goldenThreshold
}

// Finalize sets the wave's Finalized flag. Calling it twice, or on an
// unfinalizable wave, is a no-op beyond the flag flip itself: finalization
// never reverses.
func (m *Manager) Finalize(waveNum uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[waveNum]
	if !ok {
		return nil
	}
	w.Finalized = true
	return nil
}

func (m *Manager) Get(waveNum uint64) (*chaintypes.Wave, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.waves[waveNum]
	return w, ok
}

// HighestFinalizedWave returns the finalized wave with the greatest number,
// used by the consensus engine to pick a block-production parent (§4.8).
func (m *Manager) HighestFinalizedWave() (*chaintypes.Wave, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *chaintypes.Wave
	for _, w := range m.waves {
		if !w.Finalized {
			continue
		}
		if best == nil || w.Number > best.Number {
			best = w
		}
	}
	return best, best != nil
}
