package blobstore

import (
	"bytes"
	"testing"
)

func newTestStore(t *testing.T, chunkSize int) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), MaxSize: 1 << 20, ChunkSize: chunkSize}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStoreGetRoundTripSingle(t *testing.T) {
	s := newTestStore(t, 4096)
	data := []byte("small payload")
	h, err := s.Store("meta", data)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := s.Get("meta", h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestStoreGetRoundTripChunked(t *testing.T) {
	s := newTestStore(t, 64)
	data := bytes.Repeat([]byte{0x42}, 10000)
	h, err := s.Store("tex", data)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := s.Get("tex", h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("chunked round trip mismatch, got %d bytes want %d", len(got), len(data))
	}
}

func TestStoreRejectsOversize(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir(), MaxSize: 10, ChunkSize: 4}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Store("k", bytes.Repeat([]byte{1}, 11)); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t, 4096)
	data := []byte("x")
	h, _ := s.Store("k", data)
	if err := s.Delete("k", h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("k", h); err != nil {
		t.Fatalf("Delete on missing should be idempotent: %v", err)
	}
}

func TestSameContentDifferentKeysDoNotCoalesce(t *testing.T) {
	s := newTestStore(t, 4096)
	data := []byte("shared content")
	h1, _ := s.Store("key1", data)
	h2, _ := s.Store("key2", data)
	if h1 != h2 {
		t.Fatal("expected identical hash for identical content")
	}
	if err := s.Delete("key1", h1); err != nil {
		t.Fatalf("Delete key1: %v", err)
	}
	if _, err := s.Get("key2", h2); err != nil {
		t.Fatalf("key2 blob should still be retrievable: %v", err)
	}
}
