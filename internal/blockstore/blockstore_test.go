package blockstore

import (
	"testing"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { _ = sb.Cleanup() })

	s, err := Open(sb.Path("chain.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTripByHash(t *testing.T) {
	s := openTestStore(t)
	var hash chaintypes.Hash
	hash[0] = 0xab
	block := &chaintypes.Block{Header: chaintypes.BlockHeader{Hash: hash, Height: 7}}

	if err := s.Put(block); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(hash)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Header.Height != 7 {
		t.Fatalf("height = %d, want 7", got.Header.Height)
	}
}

func TestGetByHeight(t *testing.T) {
	s := openTestStore(t)
	var hash chaintypes.Hash
	hash[0] = 0xcd
	block := &chaintypes.Block{Header: chaintypes.BlockHeader{Hash: hash, Height: 42}}
	if err := s.Put(block); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.GetByHeight(42)
	if err != nil || !ok {
		t.Fatalf("get by height: ok=%v err=%v", ok, err)
	}
	if got.Header.Hash != hash {
		t.Fatalf("hash mismatch after height lookup")
	}
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	s := openTestStore(t)
	var hash chaintypes.Hash
	hash[0] = 0xff
	_, ok, err := s.Get(hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing block")
	}
}
