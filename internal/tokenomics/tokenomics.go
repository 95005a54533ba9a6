// Package tokenomics implements the token-inflation accountant described
// as an external collaborator in §6. The consensus core only depends on
// the Tokenomics interface; this in-memory implementation is a reference
// collaborator, not a specified component.
package tokenomics

import (
	"sort"
	"sync"

	"github.com/hazechain/haze/internal/chaintypes"
)

// ValidatorInfo is a stake-ranked validator, as returned by GetTopValidators.
type ValidatorInfo struct {
	Address chaintypes.Address
	Stake   uint64
}

// Tokenomics is the interface the consensus core consumes (§6).
type Tokenomics interface {
	ProcessBlockRewards(height uint64) uint64
	DistributeRewards(amount uint64, validator chaintypes.Address)
	ProcessGasFee(fee uint64) uint64
	Stake(from chaintypes.Address, validator chaintypes.Address, amount uint64)
	GetTopValidators(n int) []ValidatorInfo
}

const (
	initialReward   = 50
	halvingInterval = 200_000
)

// InMemory is a simple halving-schedule reward accountant with a
// validator-keyed stake registry, analogous to the teacher's Coin +
// stake_penalty bookkeeping but in the account-based shape this node uses.
type InMemory struct {
	mu      sync.Mutex
	minted  uint64
	burned  uint64
	rewards map[chaintypes.Address]uint64
	stakes  map[chaintypes.Address]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		rewards: make(map[chaintypes.Address]uint64),
		stakes:  make(map[chaintypes.Address]uint64),
	}
}

// ProcessBlockRewards returns the block subsidy for height under a
// halving schedule; it does not mutate any balance by itself.
func (tk *InMemory) ProcessBlockRewards(height uint64) uint64 {
	halvings := height / halvingInterval
	reward := initialReward
	for i := uint64(0); i < halvings && reward > 0; i++ {
		reward /= 2
	}
	return uint64(reward)
}

// DistributeRewards credits amount to validator's reward ledger. Applying
// it to the validator's on-chain balance is the state manager's job.
func (tk *InMemory) DistributeRewards(amount uint64, validator chaintypes.Address) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.rewards[validator] += amount
	tk.minted += amount
}

// ProcessGasFee burns half of fee and returns the remainder the caller
// should route onward (§4.3: Transfer routes 50% of fee to the burn sink,
// the remainder to this collaborator).
func (tk *InMemory) ProcessGasFee(fee uint64) uint64 {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	burn := fee / 2
	tk.burned += burn
	return fee - burn
}

// Stake registers amount against validator's stake weight.
func (tk *InMemory) Stake(from chaintypes.Address, validator chaintypes.Address, amount uint64) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.stakes[validator] += amount
}

// GetTopValidators returns the n highest-stake validators, ties broken by
// address for determinism.
func (tk *InMemory) GetTopValidators(n int) []ValidatorInfo {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	all := make([]ValidatorInfo, 0, len(tk.stakes))
	for addr, stake := range tk.stakes {
		all = append(all, ValidatorInfo{Address: addr, Stake: stake})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Stake != all[j].Stake {
			return all[i].Stake > all[j].Stake
		}
		return lessAddr(all[i].Address, all[j].Address)
	})
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

func lessAddr(a, b chaintypes.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
