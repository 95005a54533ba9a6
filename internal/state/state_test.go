package state

import (
	"testing"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/crypto"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return New(Deps{})
}

func signedTransfer(t *testing.T, kp *crypto.KeyPair, to chaintypes.Address, amount, fee, nonce uint64) *chaintypes.TransferTx {
	t.Helper()
	tx := &chaintypes.TransferTx{From: kp.Address, To: to, Amount: amount, Fee: fee, Nonce: nonce}
	sig, err := crypto.Sign(kp.Secret, tx.SigningPayload())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = sig
	return tx
}

func seedAccount(m *Manager, addr chaintypes.Address, balance uint64) {
	m.mu.Lock()
	m.accounts[addr] = &chaintypes.Account{Balance: balance}
	m.mu.Unlock()
}

func TestApplyBlockTransferMovesBalance(t *testing.T) {
	m := newManager(t)
	alice, _ := crypto.GenerateKeypair()
	bob, _ := crypto.GenerateKeypair()
	seedAccount(m, alice.Address, 1000)

	tx := signedTransfer(t, alice, bob.Address, 100, 10, 0)
	block := &chaintypes.Block{
		Header:       chaintypes.BlockHeader{Validator: alice.Address, Timestamp: time.Now().Unix()},
		Transactions: []chaintypes.Transaction{tx},
	}

	if err := m.ApplyBlock(block); err != nil {
		t.Fatalf("apply block: %v", err)
	}

	sender, _ := m.GetAccount(alice.Address)
	if sender.Balance != 890 {
		t.Fatalf("sender balance = %d, want 890", sender.Balance)
	}
	if sender.Nonce != 1 {
		t.Fatalf("sender nonce = %d, want 1", sender.Nonce)
	}
	recipient, _ := m.GetAccount(bob.Address)
	if recipient.Balance != 100 {
		t.Fatalf("recipient balance = %d, want 100", recipient.Balance)
	}
}

func TestApplyBlockRollsBackOnFailure(t *testing.T) {
	m := newManager(t)
	alice, _ := crypto.GenerateKeypair()
	bob, _ := crypto.GenerateKeypair()
	seedAccount(m, alice.Address, 1000)

	good := signedTransfer(t, alice, bob.Address, 100, 10, 0)
	bad := signedTransfer(t, alice, bob.Address, 999999, 10, 1)
	block := &chaintypes.Block{
		Header:       chaintypes.BlockHeader{Validator: alice.Address, Timestamp: time.Now().Unix()},
		Transactions: []chaintypes.Transaction{good, bad},
	}

	if err := m.ApplyBlock(block); err == nil {
		t.Fatal("expected error from oversized second transfer")
	}

	sender, _ := m.GetAccount(alice.Address)
	if sender.Balance != 1000 {
		t.Fatalf("balance should be untouched after rollback, got %d", sender.Balance)
	}
}

func TestAssetCreateUpdateCondenseEvaporate(t *testing.T) {
	m := newManager(t)
	owner, _ := crypto.GenerateKeypair()
	assetID := chaintypes.Hash{0x01}

	create := &chaintypes.MistbornAssetTx{
		From:    owner.Address,
		Action:  chaintypes.ActionCreate,
		AssetID: assetID,
		Data: chaintypes.AssetData{
			Density:  chaintypes.Ethereal,
			Metadata: map[string]string{"name": "Atium Vial"},
			Owner:    owner.Address,
		},
		Fee: 1,
	}
	block := &chaintypes.Block{
		Header:       chaintypes.BlockHeader{Timestamp: time.Now().Unix()},
		Transactions: []chaintypes.Transaction{create},
	}
	if err := m.ApplyBlock(block); err != nil {
		t.Fatalf("create: %v", err)
	}

	asset, ok := m.GetAsset(assetID)
	if !ok || asset.Data.Density != chaintypes.Ethereal {
		t.Fatalf("asset not created at Ethereal: %+v ok=%v", asset, ok)
	}

	condense := &chaintypes.MistbornAssetTx{From: owner.Address, Action: chaintypes.ActionCondense, AssetID: assetID, Fee: 1}
	block2 := &chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{condense}}
	if err := m.ApplyBlock(block2); err != nil {
		t.Fatalf("condense: %v", err)
	}
	asset, _ = m.GetAsset(assetID)
	if asset.Data.Density != chaintypes.Light {
		t.Fatalf("density after condense = %v, want Light", asset.Data.Density)
	}

	evaporate := &chaintypes.MistbornAssetTx{From: owner.Address, Action: chaintypes.ActionEvaporate, AssetID: assetID, Fee: 1}
	block3 := &chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{evaporate}}
	if err := m.ApplyBlock(block3); err != nil {
		t.Fatalf("evaporate: %v", err)
	}
	asset, _ = m.GetAsset(assetID)
	if asset.Data.Density != chaintypes.Ethereal {
		t.Fatalf("density after evaporate = %v, want Ethereal", asset.Data.Density)
	}
}

func TestAssetUpdateByNonOwnerDenied(t *testing.T) {
	m := newManager(t)
	owner, _ := crypto.GenerateKeypair()
	stranger, _ := crypto.GenerateKeypair()
	assetID := chaintypes.Hash{0x02}

	create := &chaintypes.MistbornAssetTx{
		From: owner.Address, Action: chaintypes.ActionCreate, AssetID: assetID,
		Data: chaintypes.AssetData{Density: chaintypes.Light, Owner: owner.Address}, Fee: 1,
	}
	if err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{create}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	update := &chaintypes.MistbornAssetTx{
		From: stranger.Address, Action: chaintypes.ActionUpdate, AssetID: assetID,
		Data: chaintypes.AssetData{Metadata: map[string]string{"hacked": "true"}}, Fee: 1,
	}
	err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{update}})
	if err == nil {
		t.Fatal("expected access_denied error for non-owner update")
	}
}

func TestAssetSplitAllowsSingleComponent(t *testing.T) {
	m := newManager(t)
	owner, _ := crypto.GenerateKeypair()
	sourceID := chaintypes.Hash{0x05}

	create := &chaintypes.MistbornAssetTx{
		From: owner.Address, Action: chaintypes.ActionCreate, AssetID: sourceID,
		Data: chaintypes.AssetData{Density: chaintypes.Light, Owner: owner.Address, Metadata: map[string]string{"name": "Atium Bead"}},
		Fee:  1,
	}
	if err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{create}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	split := &chaintypes.MistbornAssetTx{
		From: owner.Address, Action: chaintypes.ActionSplit, AssetID: sourceID,
		Data: chaintypes.AssetData{Metadata: map[string]string{chaintypes.CtrlComponents: "shard"}},
		Fee:  1,
	}
	if err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{split}}); err != nil {
		t.Fatalf("split with a single component should succeed: %v", err)
	}

	if _, ok := m.GetAsset(sourceID); ok {
		t.Fatal("source asset should no longer exist after split")
	}
}

func TestAssetMergeAbsorbsDonor(t *testing.T) {
	m := newManager(t)
	owner, _ := crypto.GenerateKeypair()
	targetID := chaintypes.Hash{0x03}
	otherID := chaintypes.Hash{0x04}

	mk := func(id chaintypes.Hash, name string) *chaintypes.MistbornAssetTx {
		return &chaintypes.MistbornAssetTx{
			From: owner.Address, Action: chaintypes.ActionCreate, AssetID: id,
			Data: chaintypes.AssetData{Density: chaintypes.Light, Owner: owner.Address, Metadata: map[string]string{"name": name}},
			Fee:  1,
		}
	}
	if err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{mk(targetID, "Shard A"), mk(otherID, "Shard B")}}); err != nil {
		t.Fatalf("create both: %v", err)
	}

	merge := &chaintypes.MistbornAssetTx{
		From: owner.Address, Action: chaintypes.ActionMerge, AssetID: targetID,
		Data: chaintypes.AssetData{Metadata: map[string]string{chaintypes.CtrlOtherAssetID: otherID.String()}},
		Fee:  1,
	}
	if err := m.ApplyBlock(&chaintypes.Block{Header: chaintypes.BlockHeader{Timestamp: time.Now().Unix()}, Transactions: []chaintypes.Transaction{merge}}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if _, ok := m.GetAsset(otherID); ok {
		t.Fatal("donor asset should no longer exist after merge")
	}
	if _, ok := m.GetAsset(targetID); !ok {
		t.Fatal("target asset should still exist after merge")
	}
}
