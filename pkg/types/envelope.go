package types

import "encoding/json"

// Stream message kinds carried in Envelope.Type.
const (
	KindReading    = "reading"
	KindAlert      = "alert"
	KindThresholds = "thresholds"
)

// Envelope is the JSON frame pushed on the live stream:
//
//	{"type": "reading" | "alert" | "thresholds", "data": <payload>}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AlertPayload is the data of an "alert" envelope.
type AlertPayload struct {
	ID        string `json:"id"`
	TS        string `json:"ts"`
	Message   string `json:"message"`
	ReadingID uint64 `json:"reading_id,omitempty"`
}
