// Package blobstore implements the content-addressed, chunked-on-disk blob
// store described in §4.2. Unlike a pure content-addressed store, the
// addressing tuple is (key, hash): the same bytes can live under multiple
// keys without coalescing, because callers name blobs by an asset-scoped
// key (e.g. "tex_<asset_id prefix>") rather than by hash alone.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hazechain/haze/internal/chaintypes"
)

var defaultLogger = logrus.New()

func init() {
	defaultLogger.SetOutput(os.Stderr)
}

// Config parameterises the store the way the spec's storage.* options do.
type Config struct {
	Dir       string
	MaxSize   int
	ChunkSize int
}

// Store is a directory-rooted content-addressed blob store.
type Store struct {
	cfg    Config
	logger *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("blobstore: dir required")
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("blobstore: max_size must be positive")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("blobstore: chunk_size must be positive")
	}
	if logger == nil {
		logger = defaultLogger
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir %s: %w", cfg.Dir, err)
	}
	return &Store{cfg: cfg, logger: logger}, nil
}

func shortHex(h chaintypes.Hash) string {
	return hex.EncodeToString(h[:4])
}

func (s *Store) singlePath(key string, h chaintypes.Hash) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s_%s", key, shortHex(h)))
}

func (s *Store) chunkDir(key string, h chaintypes.Hash) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s_%s.chunks", key, shortHex(h)))
}

func chunkName(i int) string {
	return fmt.Sprintf("chunk_%08d", i)
}

// Store computes hash = sha256(bytes), rejects oversized payloads, and
// writes either a single file or a chunk directory depending on size.
func (s *Store) Store(key string, data []byte) (chaintypes.Hash, error) {
	if len(data) > s.cfg.MaxSize {
		return chaintypes.Hash{}, fmt.Errorf("blobstore: payload %d exceeds max_size %d", len(data), s.cfg.MaxSize)
	}
	h := chaintypes.Hash(sha256.Sum256(data))

	if len(data) <= s.cfg.ChunkSize {
		if err := os.WriteFile(s.singlePath(key, h), data, 0o644); err != nil {
			return chaintypes.Hash{}, fmt.Errorf("blobstore: write %s: %w", key, err)
		}
		s.logger.WithFields(logrus.Fields{"key": key, "hash": h.String(), "bytes": len(data)}).Debug("blob stored (single)")
		return h, nil
	}

	dir := s.chunkDir(key, h)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return chaintypes.Hash{}, fmt.Errorf("blobstore: mkdir chunks %s: %w", key, err)
	}
	for i, off := 0, 0; off < len(data); i, off = i+1, off+s.cfg.ChunkSize {
		end := off + s.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		p := filepath.Join(dir, chunkName(i))
		if err := os.WriteFile(p, data[off:end], 0o644); err != nil {
			return chaintypes.Hash{}, fmt.Errorf("blobstore: write chunk %d: %w", i, err)
		}
	}
	s.logger.WithFields(logrus.Fields{"key": key, "hash": h.String(), "bytes": len(data)}).Debug("blob stored (chunked)")
	return h, nil
}

// Get prefers the chunked form if present, concatenating chunks in
// lexicographic order (which, given the zero-padded names, is numeric
// order too).
func (s *Store) Get(key string, h chaintypes.Hash) ([]byte, error) {
	dir := s.chunkDir(key, h)
	if entries, err := os.ReadDir(dir); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		var out []byte
		for _, n := range names {
			b, err := os.ReadFile(filepath.Join(dir, n))
			if err != nil {
				return nil, fmt.Errorf("blobstore: read chunk %s: %w", n, err)
			}
			out = append(out, b...)
		}
		return out, nil
	}

	b, err := os.ReadFile(s.singlePath(key, h))
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return b, nil
}

// Delete removes whichever form exists for (key, hash); missing blobs are
// not an error.
func (s *Store) Delete(key string, h chaintypes.Hash) error {
	dir := s.chunkDir(key, h)
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("blobstore: remove chunks %s: %w", key, err)
		}
		return nil
	}
	p := s.singlePath(key, h)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: remove %s: %w", key, err)
	}
	return nil
}
