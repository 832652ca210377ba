// Package blobstore implements content-addressed storage of large
// out-of-band payloads (generated images, debug captures) referenced by
// ID from events and branch attachments.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/ids"
)

// Meta is the metadata stored alongside a blob.
type Meta struct {
	ID        string    `json:"id"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a filesystem-backed, content-addressed blob store. Path
// sharding mirrors internal/eventlog's conversation sharding.
type Store struct {
	baseDir string

	mu     sync.Mutex
	byHash map[string]string // sha256 hex -> blob id, for dedup
}

// New creates a Store rooted at baseDir (conventionally <data>/blobs).
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, byHash: make(map[string]string)}
}

func shard(id string) (string, string) {
	if len(id) < 4 {
		return "00", "00"
	}
	return id[:2], id[2:4]
}

func (s *Store) binPath(id string) string {
	aa, bb := shard(id)
	return filepath.Join(s.baseDir, aa, bb, id+".bin")
}

func (s *Store) metaPath(id string) string {
	aa, bb := shard(id)
	return filepath.Join(s.baseDir, aa, bb, id+".meta")
}

// Save writes data under a content-addressed ID, returning the existing
// ID without rewriting bytes if an identical hash has already been saved.
func (s *Store) Save(ctx context.Context, mime string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	if id, ok := s.byHash[hash]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	// The in-memory index may be cold after a restart; callers that need
	// cross-restart dedup warm byHash via Reindex first rather than paying
	// a directory scan on every Save.
	id := string(ids.New())
	meta := Meta{ID: id, MimeType: mime, Size: int64(len(data)), Hash: hash, CreatedAt: time.Now()}

	if err := os.MkdirAll(filepath.Dir(s.binPath(id)), 0o755); err != nil {
		return "", errs.Wrap(err, errs.IoError, "create blob directory")
	}
	if err := os.WriteFile(s.binPath(id), data, 0o644); err != nil {
		return "", errs.Wrap(err, errs.IoError, "write blob")
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", errs.Wrap(err, errs.Internal, "encode blob metadata")
	}
	if err := os.WriteFile(s.metaPath(id), metaBytes, 0o644); err != nil {
		return "", errs.Wrap(err, errs.IoError, "write blob metadata")
	}

	s.mu.Lock()
	s.byHash[hash] = id
	s.mu.Unlock()
	return id, nil
}

// Reindex warms the hash index from the metadata files on disk, restoring
// cross-restart dedup for Save. Unreadable metadata entries are skipped;
// the blob itself stays loadable by ID either way.
func (s *Store) Reindex() error {
	index := make(map[string]string)
	err := filepath.WalkDir(s.baseDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".meta" {
			return nil
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		var meta Meta
		if json.Unmarshal(data, &meta) != nil || meta.Hash == "" {
			return nil
		}
		index[meta.Hash] = meta.ID
		return nil
	})
	if err != nil {
		return errs.Wrap(err, errs.IoError, "walk blob metadata")
	}

	s.mu.Lock()
	for hash, id := range index {
		if _, ok := s.byHash[hash]; !ok {
			s.byHash[hash] = id
		}
	}
	s.mu.Unlock()
	return nil
}

// Load reads a blob's bytes and metadata by ID.
func (s *Store) Load(id string) ([]byte, Meta, error) {
	data, err := os.ReadFile(s.binPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, errs.New(errs.NotFound, "blob not found: "+id)
		}
		return nil, Meta{}, errs.Wrap(err, errs.IoError, "read blob")
	}
	metaBytes, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, Meta{}, errs.Wrap(err, errs.IoError, "read blob metadata")
	}
	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, Meta{}, errs.Wrap(err, errs.Internal, "decode blob metadata")
	}
	return data, meta, nil
}

// Delete removes both the blob and its metadata and clears the hash
// index entry.
func (s *Store) Delete(id string) error {
	_, meta, err := s.Load(id)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil
		}
		return err
	}

	if err := os.Remove(s.binPath(id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, errs.IoError, "delete blob")
	}
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, errs.IoError, "delete blob metadata")
	}

	s.mu.Lock()
	if cur, ok := s.byHash[meta.Hash]; ok && cur == id {
		delete(s.byHash, meta.Hash)
	}
	s.mu.Unlock()
	return nil
}
