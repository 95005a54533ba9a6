// Package committee implements the stake-weighted validator committee
// described in §4.7: rotate() creates a new committee with a strictly
// larger id, populated from the top-N validators by stake.
package committee

import (
	"sync"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/tokenomics"
)

const DefaultSize = 21

type Manager struct {
	mu               sync.RWMutex
	committees       map[uint64]*chaintypes.Committee
	currentID        uint64
	size             int
	rotationInterval time.Duration
}

func New(size int, rotationInterval time.Duration) *Manager {
	if size <= 0 {
		size = DefaultSize
	}
	return &Manager{
		committees:       make(map[uint64]*chaintypes.Committee),
		size:             size,
		rotationInterval: rotationInterval,
	}
}

// CurrentID names the most recently created committee; zero before the
// first Rotate.
func (m *Manager) CurrentID() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

func (m *Manager) Current() (*chaintypes.Committee, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.committees[m.currentID]
	return c, ok
}

// NeedsRotation reports whether the current committee is absent or expired.
func (m *Manager) NeedsRotation(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.committees[m.currentID]
	if !ok {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// Rotate creates a new committee with id = prev_id + 1, seeded from the
// top-N validators by stake, and makes it current.
func (m *Manager) Rotate(top []tokenomics.ValidatorInfo, now time.Time) *chaintypes.Committee {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(top) > m.size {
		top = top[:m.size]
	}
	validators := make([]chaintypes.Address, len(top))
	weights := make(map[chaintypes.Address]uint64, len(top))
	for i, v := range top {
		validators[i] = v.Address
		weights[v.Address] = v.Stake
	}

	newID := m.currentID + 1
	c := &chaintypes.Committee{
		ID:         newID,
		Validators: validators,
		Weights:    weights,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.rotationInterval),
	}
	m.committees[newID] = c
	m.currentID = newID
	return c
}

func (m *Manager) Get(id uint64) (*chaintypes.Committee, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.committees[id]
	return c, ok
}
