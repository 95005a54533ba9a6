// Package mempool implements the deduplicated transaction pool described in
// §4.4: per-account nonce discipline, signature verification, and
// insufficient-balance rejection for accounts that already exist.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hazechain/haze/internal/chainerr"
	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/crypto"
)

// AccountLookup is the read-only account view the pool validates against.
// The state manager satisfies this.
type AccountLookup interface {
	GetAccount(addr chaintypes.Address) (*chaintypes.Account, bool)
}

// Pool is a concurrency-safe, deduplicated transaction pool.
type Pool struct {
	mu       sync.RWMutex
	txs      map[chaintypes.Hash]chaintypes.Transaction
	order    []chaintypes.Hash // insertion order, for iteration-stable reads
	accounts AccountLookup
}

func New(accounts AccountLookup) *Pool {
	return &Pool{
		txs:      make(map[chaintypes.Hash]chaintypes.Transaction),
		accounts: accounts,
	}
}

// pendingTransferCountLocked returns how many Transfer transactions already in
// the pool are signed by from; used to compute the nonce a new Transfer
// must carry (§4.4: "nonce = current account nonce + pending count").
func (p *Pool) pendingTransferCountLocked(from chaintypes.Address) uint64 {
	var n uint64
	for _, tx := range p.txs {
		if t, ok := tx.(*chaintypes.TransferTx); ok && t.From == from {
			n++
		}
	}
	return n
}

// Add validates and inserts tx. Duplicate hashes are rejected outright.
func (p *Pool) Add(tx chaintypes.Transaction) error {
	h := tx.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[h]; exists {
		return chainerr.InvalidTransaction("duplicate transaction")
	}
	if err := p.validateLocked(tx); err != nil {
		return err
	}
	p.txs[h] = tx
	p.order = append(p.order, h)
	return nil
}

func (p *Pool) validateLocked(tx chaintypes.Transaction) error {
	signer := tx.Signer()

	var account *chaintypes.Account
	var exists bool
	if p.accounts != nil {
		account, exists = p.accounts.GetAccount(signer)
	}

	switch t := tx.(type) {
	case *chaintypes.TransferTx:
		if t.Amount == 0 {
			return chainerr.InvalidTransaction("amount must be positive")
		}
		if t.Fee == 0 {
			return chainerr.InvalidTransaction("fee must be positive")
		}
		expected := p.pendingTransferCountLocked(signer)
		if exists {
			expected += account.Nonce
		}
		if t.Nonce != expected {
			return chainerr.InvalidTransaction("nonce")
		}
		if exists && account.Balance < t.Amount+t.Fee {
			return chainerr.InvalidTransaction("insufficient balance")
		}
	case *chaintypes.StakeTx:
		if t.Amount == 0 {
			return chainerr.InvalidTransaction("amount must be positive")
		}
		if t.Fee == 0 {
			return chainerr.InvalidTransaction("fee must be positive")
		}
		if exists && account.Balance < t.Amount+t.Fee {
			return chainerr.InvalidTransaction("insufficient balance")
		}
	case *chaintypes.ContractCallTx:
		if t.GasLimit == 0 {
			return chainerr.InvalidTransaction("gas_limit must be positive")
		}
		if t.Fee == 0 {
			return chainerr.InvalidTransaction("fee must be positive")
		}
	case *chaintypes.MistbornAssetTx:
		if t.Fee == 0 {
			return chainerr.InvalidTransaction("fee must be positive")
		}
	case *chaintypes.SetAssetPermissionsTx:
		if t.Fee == 0 {
			return chainerr.InvalidTransaction("fee must be positive")
		}
	default:
		return chainerr.InvalidTransaction(fmt.Sprintf("unknown transaction type %T", tx))
	}

	if len(tx.Signature()) == 0 {
		return chainerr.InvalidTransaction("missing signature")
	}
	ok, err := crypto.Verify(signer, tx.SigningPayload(), tx.Signature())
	if err != nil {
		return chainerr.Wrap(chainerr.KindCrypto, "signature malformed", err)
	}
	if !ok {
		return chainerr.InvalidTransaction("signature does not verify")
	}
	return nil
}

func (p *Pool) Get(h chaintypes.Hash) (chaintypes.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.txs[h]
	return tx, ok
}

// RemoveMany drops the given transactions from the pool.
func (p *Pool) RemoveMany(txs []chaintypes.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	remove := make(map[chaintypes.Hash]struct{}, len(txs))
	for _, tx := range txs {
		remove[tx.Hash()] = struct{}{}
	}
	for h := range remove {
		delete(p.txs, h)
	}
	kept := p.order[:0]
	for _, h := range p.order {
		if _, gone := remove[h]; !gone {
			kept = append(kept, h)
		}
	}
	p.order = kept
}

func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// feeOf extracts the fee field shared by every variant for deterministic
// drain ordering. Every variant carries a Fee; at equal fee, Drain orders
// by hash regardless of transaction kind.
func feeOf(tx chaintypes.Transaction) uint64 {
	switch t := tx.(type) {
	case *chaintypes.TransferTx:
		return t.Fee
	case *chaintypes.StakeTx:
		return t.Fee
	case *chaintypes.ContractCallTx:
		return t.Fee
	case *chaintypes.MistbornAssetTx:
		return t.Fee
	case *chaintypes.SetAssetPermissionsTx:
		return t.Fee
	default:
		return 0
	}
}

// Drain removes and returns up to max transactions, ordered deterministically
// by fee descending then hash ascending (§9: mempool drain order is
// undefined in the source; this is the rewrite's deterministic choice).
func (p *Pool) Drain(max int) []chaintypes.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make([]chaintypes.Transaction, 0, len(p.order))
	for _, h := range p.order {
		all = append(all, p.txs[h])
	}
	sort.SliceStable(all, func(i, j int) bool {
		fi, fj := feeOf(all[i]), feeOf(all[j])
		if fi != fj {
			return fi > fj
		}
		hi, hj := all[i].Hash(), all[j].Hash()
		for k := range hi {
			if hi[k] != hj[k] {
				return hi[k] < hj[k]
			}
		}
		return false
	})
	if max > 0 && max < len(all) {
		all = all[:max]
	}

	remove := make(map[chaintypes.Hash]struct{}, len(all))
	for _, tx := range all {
		remove[tx.Hash()] = struct{}{}
	}
	for h := range remove {
		delete(p.txs, h)
	}
	kept := p.order[:0]
	for _, h := range p.order {
		if _, gone := remove[h]; !gone {
			kept = append(kept, h)
		}
	}
	p.order = kept

	return all
}
