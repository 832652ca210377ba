package convstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/hrygo/loomchat/internal/errs"
)

// Store is a cache-first, write-through persistence layer for Shared and
// PerUser state: a sync.Map in front of JSON files on disk.
type Store struct {
	baseDir string

	sharedMu sync.Mutex
	shared   sync.Map // conversationId -> *Shared

	userMu sync.Mutex
	users  sync.Map // conversationId+"/"+userId -> *PerUser
}

// New creates a Store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) sharedPath(conversationID string) string {
	aa := shardPrefix(conversationID)
	return filepath.Join(s.baseDir, "conversation-state", aa, conversationID+".json")
}

func (s *Store) userPath(conversationID, userID string) string {
	aa := shardPrefix(conversationID)
	return filepath.Join(s.baseDir, "user-conversation-state", aa, conversationID, userID+".json")
}

func shardPrefix(id string) string {
	if len(id) < 2 {
		return "00"
	}
	return id[:2]
}

// LoadShared returns the cached Shared state, loading it from disk (or
// creating an empty one) on a cache miss.
func (s *Store) LoadShared(conversationID string) (*Shared, error) {
	if v, ok := s.shared.Load(conversationID); ok {
		return v.(*Shared), nil
	}

	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()
	if v, ok := s.shared.Load(conversationID); ok {
		return v.(*Shared), nil
	}

	sh := newShared(conversationID)
	data, err := os.ReadFile(s.sharedPath(conversationID))
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, sh); jerr != nil {
			return nil, errs.Wrap(jerr, errs.Internal, "decode shared conversation state")
		}
	case os.IsNotExist(err):
		// fresh conversation, empty state is correct
	default:
		return nil, errs.Wrap(err, errs.IoError, "read shared conversation state")
	}
	if sh.ActiveBranches == nil {
		sh.ActiveBranches = make(map[string]string)
	}
	s.shared.Store(conversationID, sh)
	return sh, nil
}

// SaveShared writes through to disk and refreshes the cache.
func (s *Store) SaveShared(sh *Shared) error {
	if err := writeJSONAtomic(s.sharedPath(sh.ConversationID), sh); err != nil {
		return err
	}
	s.shared.Store(sh.ConversationID, sh)
	return nil
}

func userKey(conversationID, userID string) string { return conversationID + "/" + userID }

// LoadUser returns the cached PerUser state, loading from disk (or
// creating an empty one) on a cache miss.
func (s *Store) LoadUser(conversationID, userID string) (*PerUser, error) {
	key := userKey(conversationID, userID)
	if v, ok := s.users.Load(key); ok {
		return v.(*PerUser), nil
	}

	s.userMu.Lock()
	defer s.userMu.Unlock()
	if v, ok := s.users.Load(key); ok {
		return v.(*PerUser), nil
	}

	pu := newPerUser(conversationID, userID)
	data, err := os.ReadFile(s.userPath(conversationID, userID))
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, pu); jerr != nil {
			return nil, errs.Wrap(jerr, errs.Internal, "decode per-user conversation state")
		}
	case os.IsNotExist(err):
		// no prior state for this user on this conversation
	default:
		return nil, errs.Wrap(err, errs.IoError, "read per-user conversation state")
	}
	s.users.Store(key, pu)
	return pu, nil
}

// SaveUser writes through to disk and refreshes the cache.
func (s *Store) SaveUser(pu *PerUser) error {
	if err := writeJSONAtomic(s.userPath(pu.ConversationID, pu.UserID), pu); err != nil {
		return err
	}
	s.users.Store(userKey(pu.ConversationID, pu.UserID), pu)
	return nil
}

// SetActiveBranch updates the shared active-branch map for a message and
// persists it, the common side effect of setActiveBranch/edit/regenerate,
// invoked by the layer that also appends the tree event.
func (s *Store) SetActiveBranch(conversationID, messageID, branchID string) error {
	sh, err := s.LoadShared(conversationID)
	if err != nil {
		return err
	}
	sh.ActiveBranches[messageID] = branchID
	return s.SaveShared(sh)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(err, errs.IoError, "create state directory")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.Internal, "encode state")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(err, errs.IoError, "write state temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(err, errs.IoError, "install state file")
	}
	return nil
}
