package wave

import (
	"testing"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
)

func TestCheckFinalizationRequiresTwoBlocksAndThreshold(t *testing.T) {
	m := New(50 * time.Millisecond)
	now := time.Now()

	var h1, h2 chaintypes.Hash
	h1[0] = 1
	h2[0] = 2

	m.AddBlock(1, h1, now)
	if m.CheckFinalization(1, now) {
		t.Fatal("one block should not be finalizable")
	}

	m.AddBlock(1, h2, now)
	if m.CheckFinalization(1, now) {
		t.Fatal("two blocks before the threshold elapses should not finalize")
	}

	later := now.Add(60 * time.Millisecond)
	if !m.CheckFinalization(1, later) {
		t.Fatal("two blocks past the threshold should be finalizable")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	m := New(time.Millisecond)
	var h chaintypes.Hash
	h[0] = 1
	now := time.Now()
	m.AddBlock(1, h, now)

	if err := m.Finalize(1); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if err := m.Finalize(1); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	w, ok := m.Get(1)
	if !ok || !w.Finalized {
		t.Fatal("wave 1 should be finalized")
	}
}

func TestHighestFinalizedWave(t *testing.T) {
	m := New(time.Millisecond)
	now := time.Now()
	var h chaintypes.Hash
	h[0] = 1
	m.AddBlock(1, h, now)
	m.AddBlock(2, h, now)
	_ = m.Finalize(1)

	if _, ok := m.HighestFinalizedWave(); !ok {
		t.Fatal("expected a finalized wave")
	}

	_ = m.Finalize(2)
	best, ok := m.HighestFinalizedWave()
	if !ok || best.Number != 2 {
		t.Fatalf("highest finalized wave = %+v, want number 2", best)
	}
}

func TestFinalizeUnknownWaveIsNoop(t *testing.T) {
	m := New(time.Millisecond)
	if err := m.Finalize(999); err != nil {
		t.Fatalf("finalizing an unknown wave should be a no-op, got %v", err)
	}
}
