package replay

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
	"github.com/hrygo/loomchat/internal/tree"
)

// Stats accumulates startup observability counters. Unknown kinds are
// silently ignored during replay but counted here so an operator can see
// a log written by a newer build.
type Stats struct {
	UnknownKinds int64
}

func (s *Stats) noteKind(k events.Kind) {
	if _, known := events.CategoryOf(k); !known {
		atomic.AddInt64(&s.UnknownKinds, 1)
	}
}

// Conversation replays one conversation's log into a fresh tree.Tree.
// Replay never mutates the log; Apply is the exact same function live
// command application uses.
func Conversation(log *eventlog.EventLog, conversationID string, stats *Stats) (*tree.Tree, error) {
	t := tree.New(conversationID)
	id := eventlog.Conversation(conversationID)
	err := log.Load(id, func(env events.Envelope) error {
		if stats != nil {
			stats.noteKind(env.Type)
		}
		return t.Apply(env)
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "replay conversation "+conversationID)
	}
	return t, nil
}

// All replays every conversation shard found on disk in parallel, safe
// because each conversation's replay only touches its own Tree.
func All(log *eventlog.EventLog, stats *Stats) (map[string]*tree.Tree, error) {
	ids, err := log.AllConversationShards()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]*tree.Tree, len(ids))

	g := new(errgroup.Group)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			t, err := Conversation(log, id, stats)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
