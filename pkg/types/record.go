package types

import (
	"encoding/json"
	"time"
)

// LogRecord is the unit the archival engine moves between stores. The engine
// only relies on the envelope fields; Payload is an opaque JSON document whose
// schema belongs to the producer (actor, action, outcome, context).
type LogRecord struct {
	ID        string          `json:"id"`
	Type      LogType         `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
