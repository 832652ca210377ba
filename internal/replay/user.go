package replay

import (
	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/eventlog"
	"github.com/hrygo/loomchat/internal/events"
)

// ConversationSummary is the user-log projection of one conversation's
// lifecycle, minus its message tree, which lives in the per-conversation
// log.
type ConversationSummary struct {
	ID             string
	OwnerID        string
	Title          string
	SystemPrompt   string
	DefaultModelID string
	Format         string
	ArchivedAt     *int64
}

// Participant is the user-log projection of one participant.
type Participant struct {
	ID             string
	ConversationID string
	Name           string
	Kind           string
	ModelID        string
	SystemPrompt   string
	IsActive       bool
}

// UserProjection is everything derivable from a single user's log.
type UserProjection struct {
	UserID        string
	Conversations map[string]*ConversationSummary
	Participants  map[string]*Participant
	MetricsCount  int
}

// User replays one user's log: conversation_created/updated/archived,
// participant_created/updated/deleted, and metrics_added.
func User(log *eventlog.EventLog, userID string, stats *Stats) (*UserProjection, error) {
	p := &UserProjection{
		UserID:        userID,
		Conversations: make(map[string]*ConversationSummary),
		Participants:  make(map[string]*Participant),
	}
	id := eventlog.User(userID)
	err := log.Load(id, func(env events.Envelope) error {
		if stats != nil {
			stats.noteKind(env.Type)
		}
		return p.apply(env)
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.Internal, "replay user "+userID)
	}
	return p, nil
}

func (p *UserProjection) apply(env events.Envelope) error {
	switch env.Type {
	case events.ConversationCreated:
		var d events.ConversationCreatedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		p.Conversations[d.ConversationID] = &ConversationSummary{
			ID: d.ConversationID, OwnerID: d.OwnerID, Title: d.Title,
			SystemPrompt: d.SystemPrompt, DefaultModelID: d.DefaultModelID, Format: d.Format,
		}
	case events.ConversationUpdated:
		var d events.ConversationUpdatedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		c, ok := p.Conversations[d.ConversationID]
		if !ok {
			return nil
		}
		if d.Title != nil {
			c.Title = *d.Title
		}
		if d.SystemPrompt != nil {
			c.SystemPrompt = *d.SystemPrompt
		}
		if d.DefaultModelID != nil {
			c.DefaultModelID = *d.DefaultModelID
		}
	case events.ConversationArchived:
		var d events.ConversationArchivedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		if c, ok := p.Conversations[d.ConversationID]; ok {
			now := env.Timestamp.UnixMilli()
			c.ArchivedAt = &now
		}
	case events.ParticipantCreated:
		var d events.ParticipantCreatedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		p.Participants[d.ParticipantID] = &Participant{
			ID: d.ParticipantID, ConversationID: d.ConversationID, Name: d.Name,
			Kind: d.Kind, ModelID: d.ModelID, SystemPrompt: d.SystemPrompt, IsActive: d.IsActive,
		}
	case events.ParticipantUpdated:
		var d events.ParticipantUpdatedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		pt, ok := p.Participants[d.ParticipantID]
		if !ok {
			return nil
		}
		if d.Name != nil {
			pt.Name = *d.Name
		}
		if d.ModelID != nil {
			pt.ModelID = *d.ModelID
		}
		if d.IsActive != nil {
			pt.IsActive = *d.IsActive
		}
	case events.ParticipantDeleted:
		var d events.ParticipantDeletedPayload
		if err := env.Decode(&d); err != nil {
			return err
		}
		delete(p.Participants, d.ParticipantID)
	case events.MetricsAdded:
		p.MetricsCount++
	}
	return nil
}

// ActiveConversations returns non-archived conversations; archived ones
// stay replayable but are excluded from default listings.
func (p *UserProjection) ActiveConversations() []*ConversationSummary {
	out := make([]*ConversationSummary, 0, len(p.Conversations))
	for _, c := range p.Conversations {
		if c.ArchivedAt == nil {
			out = append(out, c)
		}
	}
	return out
}
