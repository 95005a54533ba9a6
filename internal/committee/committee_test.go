package committee

import (
	"testing"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
	"github.com/hazechain/haze/internal/tokenomics"
)

func TestNeedsRotationBeforeFirstRotate(t *testing.T) {
	m := New(21, time.Hour)
	if !m.NeedsRotation(time.Now()) {
		t.Fatal("a manager with no committee yet should need rotation")
	}
}

func TestRotateAssignsIncrementingIDs(t *testing.T) {
	m := New(2, time.Hour)
	now := time.Now()
	top := []tokenomics.ValidatorInfo{
		{Address: chaintypes.Address{0x01}, Stake: 100},
		{Address: chaintypes.Address{0x02}, Stake: 50},
		{Address: chaintypes.Address{0x03}, Stake: 10},
	}

	c1 := m.Rotate(top, now)
	if c1.ID != 1 {
		t.Fatalf("first committee id = %d, want 1", c1.ID)
	}
	if len(c1.Validators) != 2 {
		t.Fatalf("committee should be truncated to size 2, got %d", len(c1.Validators))
	}

	c2 := m.Rotate(top, now.Add(time.Minute))
	if c2.ID != 2 {
		t.Fatalf("second committee id = %d, want 2", c2.ID)
	}
	if m.CurrentID() != 2 {
		t.Fatalf("current id = %d, want 2", m.CurrentID())
	}
}

func TestNeedsRotationAfterExpiry(t *testing.T) {
	m := New(21, time.Millisecond)
	now := time.Now()
	m.Rotate([]tokenomics.ValidatorInfo{{Address: chaintypes.Address{0x01}, Stake: 1}}, now)

	if m.NeedsRotation(now) {
		t.Fatal("freshly rotated committee should not need rotation yet")
	}
	if !m.NeedsRotation(now.Add(time.Second)) {
		t.Fatal("expired committee should need rotation")
	}
}
