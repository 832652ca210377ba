package ledger

import (
	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
)

// Replay folds the main log into a fresh Ledger.
func Replay(log *eventlog.EventLog) (*Ledger, error) {
	l := New()
	err := log.Load(eventlog.Main(), func(env events.Envelope) error {
		return l.Apply(env)
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "replay ledger")
	}
	return l, nil
}
