// Package state implements the central state machine described in §4.3:
// accounts, the Mistborn asset registry, and ApplyBlock's all-or-nothing
// transaction application. Mutations are staged in an overlay and only
// merged into committed state once every transaction in a block has
// applied cleanly, matching the teacher's stage-then-commit ledger pattern
// (core/ledger.go) generalized from a UTXO model to this account model.
package state

import (
	"context"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hazechain/haze/internal/blobstore"
	"github.com/hazechain/haze/internal/blockstore"
	"github.com/hazechain/haze/internal/chainerr"
	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/events"
	"github.com/hazechain/haze/internal/tokenomics"
	"github.com/hazechain/haze/internal/vm"
)

// Manager owns every piece of committed chain state: balances, assets and
// (optionally) a persistence and blob-storage backend.
type Manager struct {
	mu       sync.RWMutex
	accounts map[chaintypes.Address]*chaintypes.Account
	assets   map[chaintypes.Hash]*chaintypes.AssetState
	height   uint64

	blobs  *blobstore.Store
	blocks *blockstore.Store
	tk     tokenomics.Tokenomics
	vm     vm.VM
	events *events.Sink
	log    *logrus.Logger
}

type Deps struct {
	Blobs      *blobstore.Store
	Blocks     *blockstore.Store
	Tokenomics tokenomics.Tokenomics
	VM         vm.VM
	Events     *events.Sink
	Logger     *logrus.Logger
}

func New(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		accounts: make(map[chaintypes.Address]*chaintypes.Account),
		assets:   make(map[chaintypes.Hash]*chaintypes.AssetState),
		blobs:    deps.Blobs,
		blocks:   deps.Blocks,
		tk:       deps.Tokenomics,
		vm:       deps.VM,
		events:   deps.Events,
		log:      logger,
	}
}

// GetAccount satisfies mempool.AccountLookup.
func (m *Manager) GetAccount(addr chaintypes.Address) (*chaintypes.Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[addr]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (m *Manager) GetAsset(id chaintypes.Hash) (*chaintypes.AssetState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// CurrentHeight is the height of the last block ApplyBlock committed (§4.3
// C4 operation current_height).
func (m *Manager) CurrentHeight() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// GetAssetHistory returns up to limit of the most recent history entries
// for id, newest first (§9 supplemented get_asset_history).
func (m *Manager) GetAssetHistory(id chaintypes.Hash, limit int) ([]chaintypes.AssetHistoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, false
	}
	n := len(a.History)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]chaintypes.AssetHistoryEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = a.History[n-1-i]
	}
	return out, true
}

// overlay stages mutations for one block: only touched accounts/assets are
// copied in, everything else falls through to the committed maps.
type overlay struct {
	m        *Manager
	accounts map[chaintypes.Address]*chaintypes.Account
	assets   map[chaintypes.Hash]*chaintypes.AssetState
	deleted  map[chaintypes.Hash]bool
	emitted  []events.Event
}

func newOverlay(m *Manager) *overlay {
	return &overlay{
		m:        m,
		accounts: make(map[chaintypes.Address]*chaintypes.Account),
		assets:   make(map[chaintypes.Hash]*chaintypes.AssetState),
		deleted:  make(map[chaintypes.Hash]bool),
	}
}

func (o *overlay) account(addr chaintypes.Address) *chaintypes.Account {
	if a, ok := o.accounts[addr]; ok {
		return a
	}
	o.m.mu.RLock()
	base, ok := o.m.accounts[addr]
	o.m.mu.RUnlock()
	var a *chaintypes.Account
	if ok {
		a = base.Clone()
	} else {
		a = &chaintypes.Account{}
	}
	o.accounts[addr] = a
	return a
}

func (o *overlay) asset(id chaintypes.Hash) (*chaintypes.AssetState, bool) {
	if a, ok := o.assets[id]; ok {
		return a, !o.deleted[id]
	}
	o.m.mu.RLock()
	base, ok := o.m.assets[id]
	o.m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	a := base.Clone()
	o.assets[id] = a
	return a, true
}

func (o *overlay) setAsset(id chaintypes.Hash, a *chaintypes.AssetState) {
	o.assets[id] = a
	delete(o.deleted, id)
}

func (o *overlay) deleteAsset(id chaintypes.Hash) {
	delete(o.assets, id)
	o.deleted[id] = true
}

func (o *overlay) emit(ev events.Event) {
	o.emitted = append(o.emitted, ev)
}

// ApplyBlock applies block in the order §4.3 specifies: mint the block
// reward to the validator first, then apply every transaction against a
// staged overlay, then advance current_height. If any transaction fails,
// the whole block is rejected and committed state is untouched ("apply
// fully or roll back"); the reward mint participates in the same staged
// overlay, so a failed block mints nothing either.
func (m *Manager) ApplyBlock(block *chaintypes.Block) error {
	ov := newOverlay(m)
	ts := time.Unix(block.Header.Timestamp, 0).UTC()

	var reward uint64
	if m.tk != nil {
		reward = m.tk.ProcessBlockRewards(block.Header.Height)
		if reward > 0 {
			ov.account(block.Header.Validator).Balance += reward
		}
	}

	for _, tx := range block.Transactions {
		if err := m.applyTx(ov, tx, ts); err != nil {
			return chainerr.Wrap(chainerr.KindState, "apply block", err)
		}
	}
	if reward > 0 {
		m.tk.DistributeRewards(reward, block.Header.Validator)
	}

	m.mu.Lock()
	for addr, a := range ov.accounts {
		m.accounts[addr] = a
	}
	for id, a := range ov.assets {
		if !ov.deleted[id] {
			m.assets[id] = a
		}
	}
	for id := range ov.deleted {
		delete(m.assets, id)
	}
	m.height = block.Header.Height
	m.mu.Unlock()

	if m.blocks != nil {
		if err := m.blocks.Put(block); err != nil {
			m.log.WithError(err).Warn("persist block failed after state commit")
		}
	}
	if m.events != nil {
		for _, ev := range ov.emitted {
			m.events.Emit(ev)
		}
	}
	return nil
}

func (m *Manager) applyTx(ov *overlay, tx chaintypes.Transaction, ts time.Time) error {
	switch t := tx.(type) {
	case *chaintypes.TransferTx:
		return m.applyTransfer(ov, t)
	case *chaintypes.StakeTx:
		return m.applyStake(ov, t)
	case *chaintypes.ContractCallTx:
		return m.applyContractCall(ov, t)
	case *chaintypes.MistbornAssetTx:
		return m.applyMistbornAsset(ov, t, ts)
	case *chaintypes.SetAssetPermissionsTx:
		return m.applySetAssetPermissions(ov, t, ts)
	default:
		return chainerr.InvalidTransaction("unknown transaction kind")
	}
}

// applyTransfer is the only transaction kind that advances the sender's
// nonce (§8 testable invariant #5: nonce counts successfully applied
// Transfers, not every transaction kind).
func (m *Manager) applyTransfer(ov *overlay, t *chaintypes.TransferTx) error {
	sender := ov.account(t.From)
	total := t.Amount + t.Fee
	if sender.Balance < total {
		return chainerr.InvalidTransaction("insufficient balance")
	}
	if t.Nonce != sender.Nonce {
		return chainerr.InvalidTransaction("nonce mismatch at apply time")
	}
	sender.Balance -= total
	sender.Nonce++

	recipient := ov.account(t.To)
	recipient.Balance += t.Amount

	m.routeFee(t.Fee)
	return nil
}

func (m *Manager) applyStake(ov *overlay, t *chaintypes.StakeTx) error {
	sender := ov.account(t.From)
	total := t.Amount + t.Fee
	if sender.Balance < total {
		return chainerr.InvalidTransaction("insufficient balance")
	}
	sender.Balance -= total
	sender.Staked += t.Amount

	if m.tk != nil {
		m.tk.Stake(t.From, t.Validator, t.Amount)
	}
	m.routeFee(t.Fee)
	return nil
}

func (m *Manager) applyContractCall(ov *overlay, t *chaintypes.ContractCallTx) error {
	sender := ov.account(t.From)
	if sender.Balance < t.Fee {
		return chainerr.InvalidTransaction("insufficient balance for fee")
	}
	sender.Balance -= t.Fee

	if m.vm != nil {
		execCtx := vm.ExecContext{Caller: t.From, Contract: t.Contract, GasLimit: t.GasLimit}
		// Contract bytecode itself is fetched by the caller's higher layer
		// (not modeled here); an empty module is a no-op for bookkeeping
		// purposes only, matching the "VM is an external collaborator" scope.
		if _, err := m.vm.Execute(context.Background(), nil, t.Method, t.Args, execCtx); err != nil {
			return chainerr.Wrap(chainerr.KindVM, "contract call failed", err)
		}
	}

	m.routeFee(t.Fee)
	return nil
}

// routeFee hands fee to the tokenomics collaborator, which burns half of
// it; the remainder ProcessGasFee returns is discarded here, not credited
// to any account balance.
func (m *Manager) routeFee(fee uint64) {
	if fee == 0 || m.tk == nil {
		return
	}
	m.tk.ProcessGasFee(fee)
}

// CreditReward applies a balance credit directly to committed state,
// bypassing the transaction-staged overlay. Block rewards themselves are
// minted inside ApplyBlock (§4.3 step 1); this is for out-of-band credits
// such as genesis allocation, which are not transactions any account signed.
func (m *Manager) CreditReward(addr chaintypes.Address, amount uint64) {
	if amount == 0 || addr.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		acc = &chaintypes.Account{}
		m.accounts[addr] = acc
	}
	acc.Balance += amount
}

// ComputeStateRoot hashes every account and asset in address/id order, plus
// current_height, so the result is a pure function of (accounts, assets,
// height) (§8 testable invariant #6) independent of map iteration order.
func (m *Manager) ComputeStateRoot() chaintypes.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var heightBuf [8]byte
	putLE64(heightBuf[:], m.height)

	addrs := make([]chaintypes.Address, 0, len(m.accounts))
	for a := range m.accounts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return lessBytes(addrs[i][:], addrs[j][:]) })

	h := sha256.New()
	h.Write(heightBuf[:])
	for _, a := range addrs {
		acc := m.accounts[a]
		h.Write(a[:])
		var buf [24]byte
		putLE64(buf[0:8], acc.Balance)
		putLE64(buf[8:16], acc.Nonce)
		putLE64(buf[16:24], acc.Staked)
		h.Write(buf[:])
	}

	ids := make([]chaintypes.Hash, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessBytes(ids[i][:], ids[j][:]) })

	for _, id := range ids {
		a := m.assets[id]
		h.Write(id[:])
		h.Write(a.Owner[:])
		h.Write([]byte{byte(a.Data.Density)})
		var ts [8]byte
		putLE64(ts[:], uint64(a.UpdatedAt))
		h.Write(ts[:])
	}

	return chaintypes.Hash(sha256.Sum256(h.Sum(nil)))
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
