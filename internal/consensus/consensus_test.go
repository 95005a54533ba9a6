package consensus

import (
	"testing"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/committee"
	"github.com/hazechain/haze/internal/crypto"
	"github.com/hazechain/haze/internal/dag"
	"github.com/hazechain/haze/internal/mempool"
	"github.com/hazechain/haze/internal/state"
	"github.com/hazechain/haze/internal/tokenomics"
	"github.com/hazechain/haze/internal/wave"
)

func newEngine(t *testing.T) (*Engine, *state.Manager) {
	t.Helper()
	st := state.New(state.Deps{})
	pool := mempool.New(st)
	eng := New(Config{}, Deps{
		Mempool:    pool,
		DAG:        dag.New(),
		Wave:       wave.New(2 * time.Second),
		Committee:  committee.New(committee.DefaultSize, time.Hour),
		State:      st,
		Tokenomics: tokenomics.NewInMemory(),
	})
	return eng, st
}

func TestCreateBlockGenesisHasZeroParent(t *testing.T) {
	eng, _ := newEngine(t)
	validator, _ := crypto.GenerateKeypair()

	block, err := eng.CreateBlock(validator.Address, time.Now())
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if !block.Header.ParentHash.IsZero() {
		t.Fatalf("genesis block should have zero parent, got %s", block.Header.ParentHash)
	}
	if block.Header.Height != 0 {
		t.Fatalf("genesis height = %d, want 0", block.Header.Height)
	}
}

func TestProcessBlockThenCreateReferencesIt(t *testing.T) {
	eng, _ := newEngine(t)
	validator, _ := crypto.GenerateKeypair()
	now := time.Now()

	first, err := eng.CreateBlock(validator.Address, now)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := eng.ProcessBlock(first, now); err != nil {
		t.Fatalf("process first: %v", err)
	}

	second, err := eng.CreateBlock(validator.Address, now.Add(time.Second))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.Header.ParentHash != first.Header.Hash {
		t.Fatalf("second block parent = %s, want %s", second.Header.ParentHash, first.Header.Hash)
	}
	if second.Header.Height != 1 {
		t.Fatalf("second height = %d, want 1", second.Header.Height)
	}
}

func TestProcessBlockAppliesTransactions(t *testing.T) {
	eng, st := newEngine(t)
	validator, _ := crypto.GenerateKeypair()
	alice, _ := crypto.GenerateKeypair()
	bob, _ := crypto.GenerateKeypair()

	st.CreditReward(alice.Address, 1000)

	tx := &chaintypes.TransferTx{From: alice.Address, To: bob.Address, Amount: 50, Fee: 5, Nonce: 0}
	sig, err := crypto.Sign(alice.Secret, tx.SigningPayload())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sig = sig
	if err := eng.mempool.Add(tx); err != nil {
		t.Fatalf("add to mempool: %v", err)
	}

	now := time.Now()
	block, err := eng.CreateBlock(validator.Address, now)
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 drained tx, got %d", len(block.Transactions))
	}
	if err := eng.ProcessBlock(block, now); err != nil {
		t.Fatalf("process block: %v", err)
	}

	bobAcct, _ := st.GetAccount(bob.Address)
	if bobAcct.Balance != 50 {
		t.Fatalf("bob balance = %d, want 50", bobAcct.Balance)
	}
}
