package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashcast/internal/core"
)

// TrainRequestMessage asks the worker to retrain one model from the stored
// transactions. The worker recomputes everything from the database.
type TrainRequestMessage struct {
	ModelName   string           `json:"model_name"`
	Granularity core.Granularity `json:"granularity"`
	AccountID   *int64           `json:"account_id,omitempty"`
	Lags        int              `json:"lags"`
	Force       bool             `json:"force"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewTrainRequestMessage builds a request whose model name follows the storage naming.
func NewTrainRequestMessage(g core.Granularity, accountID *int64, lags int, force bool) *TrainRequestMessage {
	return &TrainRequestMessage{
		ModelName:   core.ModelName(g, accountID, lags),
		Granularity: g,
		AccountID:   accountID,
		Lags:        lags,
		Force:       force,
		Timestamp:   time.Now(),
	}
}

// Validate rejects messages the worker can never process.
func (m *TrainRequestMessage) Validate() error {
	if !m.Granularity.Valid() {
		return fmt.Errorf("message for %q: %w", m.ModelName, core.ErrInvalidGranularity)
	}
	if m.Lags < 0 {
		return fmt.Errorf("message for %q: %w", m.ModelName, core.ErrInvalidLags)
	}
	if m.ModelName == "" {
		return fmt.Errorf("message without model name")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *TrainRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TrainRequestMessageFromJSON decodes and validates a message body.
func TrainRequestMessageFromJSON(data []byte) (*TrainRequestMessage, error) {
	var msg TrainRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
