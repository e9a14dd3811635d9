package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CurrentSchemaVersion is stamped on every envelope produced by courier.
const CurrentSchemaVersion = 1

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the canonical, versioned event envelope wrapping every work
// unit and delivery callback exchanged over the messaging transport.
// Field names are part of the wire contract and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id,omitempty"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate checks the fields consumers depend on for dedup and routing.
func (e Envelope) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.Join(ErrInvalidEnvelope, errors.New("event_id is required"))
	case strings.TrimSpace(e.EventType) == "":
		return errors.Join(ErrInvalidEnvelope, errors.New("event_type is required"))
	case e.SchemaVersion > CurrentSchemaVersion:
		return errors.Join(ErrInvalidEnvelope, errors.New("unsupported schema_version"))
	case len(e.Data) == 0 || string(e.Data) == "null":
		return errors.Join(ErrInvalidEnvelope, errors.New("data is required"))
	}
	return nil
}
