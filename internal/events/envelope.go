package events

import (
	"encoding/json"
	"time"
)

// Envelope is the on-disk shape of one event line:
//
//	{"timestamp": "<ISO-8601 ms>", "type": "<kind>", "data": {...}}
//
// Unknown top-level fields are tolerated on read (json.Unmarshal already
// ignores them) and never emitted on write, since Envelope only has these
// three fields.
type Envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// New builds an Envelope from a typed payload, serializing Data and
// truncating Timestamp to millisecond resolution.
func New(ts time.Time, kind Kind, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Timestamp: ts.UTC().Truncate(time.Millisecond),
		Type:      kind,
		Data:      data,
	}, nil
}

// Decode unmarshals Data into target.
func (e Envelope) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}

// MarshalLine renders the envelope as a single newline-delimited-JSON line
// (without the trailing newline).
func (e Envelope) MarshalLine() ([]byte, error) {
	return json.Marshal(e)
}
