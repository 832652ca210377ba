package eventlog

import (
	"context"
	"encoding/json"
	"os"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
)

// BlobSaver is the narrow interface the compactor needs from a blob store
// to relocate stripped debug payloads. internal/blobstore.Store satisfies
// it.
type BlobSaver interface {
	Save(ctx context.Context, mime string, data []byte) (id string, err error)
}

// CompactOptions controls one compaction run.
type CompactOptions struct {
	// RelocateDebugToBlobs saves stripped debug payloads to Blobs and
	// writes debugRequestBlobId/debugResponseBlobId instead of dropping
	// them outright. If Blobs is nil, debug payloads are simply stripped.
	RelocateDebugToBlobs bool
	Blobs                BlobSaver
	// KeepBackup controls whether the pre-compaction file is preserved as
	// <id>.jsonl.pre-compact.bak. The zero value (false) keeps no backup.
	KeepBackup bool
}

// CompactionReport summarizes one compaction run.
type CompactionReport struct {
	BytesBefore           int64
	BytesAfter            int64
	EventsBefore          int
	EventsAfter           int
	RemovedByKind         map[events.Kind]int
	DebugPayloadsStripped int
}

// Compact rewrites one conversation log, dropping reconstructable event
// kinds and stripping/relocating large debug payloads on
// message_branch_updated events. Replaying the compacted log yields the
// same state as replaying the original, modulo the removed reconstructable
// events.
func (l *EventLog) Compact(ctx context.Context, conversationID string, opts CompactOptions) (CompactionReport, error) {
	id := Conversation(conversationID)
	p, err := path(l.baseDir, id)
	if err != nil {
		return CompactionReport{}, err
	}

	report := CompactionReport{RemovedByKind: make(map[events.Kind]int)}

	before, statErr := os.Stat(p)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return report, nil
		}
		return CompactionReport{}, errs.Wrap(statErr, errs.IoError, "stat log before compaction")
	}
	report.BytesBefore = before.Size()

	tmpPath := p + ".compact.tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return CompactionReport{}, errs.Wrap(err, errs.IoError, "create compaction temp file")
	}
	defer os.Remove(tmpPath) // no-op once renamed into place

	writeErr := l.Load(id, func(env events.Envelope) error {
		report.EventsBefore++

		if events.ReconstructableFromState(env.Type) {
			report.RemovedByKind[env.Type]++
			return nil
		}

		if env.Type == events.MessageBranchUpdated {
			stripped, changed, err := stripDebugPayload(ctx, env, opts)
			if err != nil {
				return err
			}
			if changed {
				env = stripped
				report.DebugPayloadsStripped++
			}
		}

		line, err := env.MarshalLine()
		if err != nil {
			return err
		}
		line = append(line, '\n')
		if _, err := tmp.Write(line); err != nil {
			return err
		}
		report.EventsAfter++
		return nil
	})
	if writeErr != nil {
		tmp.Close()
		return CompactionReport{}, errs.Wrap(writeErr, errs.IoError, "rewrite log during compaction")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return CompactionReport{}, errs.Wrap(err, errs.IoError, "fsync compacted log")
	}
	if err := tmp.Close(); err != nil {
		return CompactionReport{}, errs.Wrap(err, errs.IoError, "close compacted log")
	}

	keepBackup := opts.KeepBackup
	if keepBackup {
		bakPath := p + ".pre-compact.bak"
		if err := os.Rename(p, bakPath); err != nil {
			return CompactionReport{}, errs.Wrap(err, errs.IoError, "backup pre-compaction log")
		}
	}

	// Close any open handle on the live path before replacing it so a
	// concurrent writer doesn't keep appending to an unlinked inode.
	l.mu.Lock()
	if h, ok := l.handles[id.String()]; ok {
		h.mu.Lock()
		if h.f != nil {
			h.w.Flush()
			h.f.Close()
		}
		h.initialized = false
		h.closed = true
		h.mu.Unlock()
	}
	l.mu.Unlock()

	if err := os.Rename(tmpPath, p); err != nil {
		return CompactionReport{}, errs.Wrap(err, errs.IoError, "install compacted log")
	}

	after, err := os.Stat(p)
	if err != nil {
		return CompactionReport{}, errs.Wrap(err, errs.IoError, "stat log after compaction")
	}
	report.BytesAfter = after.Size()

	// The handle stays closed: Append fails until the next Init reopens it.
	return report, nil
}

// stripDebugPayload removes (or relocates to blob storage) large debug
// fields from a message_branch_updated payload.
func stripDebugPayload(ctx context.Context, env events.Envelope, opts CompactOptions) (events.Envelope, bool, error) {
	var payload events.MessageBranchUpdatedPayload
	if err := env.Decode(&payload); err != nil {
		// Not a shape we understand; leave untouched rather than fail compaction.
		return env, false, nil
	}
	if payload.DebugRequest == nil && payload.DebugResponse == nil {
		return env, false, nil
	}

	if opts.RelocateDebugToBlobs && opts.Blobs != nil {
		if payload.DebugRequest != nil {
			data, _ := json.Marshal(payload.DebugRequest)
			if id, err := opts.Blobs.Save(ctx, "application/json", data); err == nil {
				payload.DebugRequestBlob = id
			}
		}
		if payload.DebugResponse != nil {
			data, _ := json.Marshal(payload.DebugResponse)
			if id, err := opts.Blobs.Save(ctx, "application/json", data); err == nil {
				payload.DebugResponseBlob = id
			}
		}
	}
	payload.DebugRequest = nil
	payload.DebugResponse = nil

	newEnv, err := events.New(env.Timestamp, env.Type, payload)
	if err != nil {
		return env, false, err
	}
	return newEnv, true, nil
}
