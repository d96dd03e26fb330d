package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrInvalidMessage = errors.New("invalid sync request")

// SyncRequestMessage asks a worker to refresh data from data.gov.in.
// An empty StateCode requests every stored state.
type SyncRequestMessage struct {
	RunID     string    `json:"run_id"`
	StateCode string    `json:"state_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncRequestMessage creates a request for one state, or for all states
// when stateCode is empty.
func NewSyncRequestMessage(runID, stateCode string) *SyncRequestMessage {
	return &SyncRequestMessage{
		RunID:     runID,
		StateCode: strings.ToUpper(strings.TrimSpace(stateCode)),
		Timestamp: time.Now(),
	}
}

// IsFullSync reports whether the request covers every state.
func (m *SyncRequestMessage) IsFullSync() bool {
	return m.StateCode == ""
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes and validates a message body.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.RunID) == "" {
		return nil, errors.Join(ErrInvalidMessage, errors.New("missing run_id"))
	}
	if n := len(msg.StateCode); n != 0 && (n < 2 || n > 3) {
		return nil, errors.Join(ErrInvalidMessage, errors.New("bad state_code"))
	}
	msg.StateCode = strings.ToUpper(msg.StateCode)
	return &msg, nil
}
