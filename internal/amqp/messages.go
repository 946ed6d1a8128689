package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// BudgetChangedMessage announces that a user's aggregate was saved. It only
// carries identifiers; consumers reload the user from the store.
type BudgetChangedMessage struct {
	UserID string `json:"user_id"`
	// BudgetID is the budget touched by the change, empty for user-level changes.
	BudgetID  string    `json:"budget_id,omitempty"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetChangedMessage(userID, budgetID string, version int64) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		UserID:    userID,
		BudgetID:  budgetID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetChangedMessageFromJSON decodes and validates a message body.
func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("budget changed message without user_id")
	}
	return &msg, nil
}
