package amqp

import (
	"encoding/json"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
)

// EntryCreatedMessage is published after a ledger entry is stored.
type EntryCreatedMessage struct {
	EntryID   int64      `json:"entry_id"`
	OwnerID   string     `json:"owner_id"`
	Date      core.Date  `json:"date"`
	Item      string     `json:"item"`
	Amount    core.Money `json:"amount"`
	Category  string     `json:"category"`
	Source    string     `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewEntryCreatedMessage(e core.LedgerEntry) *EntryCreatedMessage {
	return &EntryCreatedMessage{
		EntryID:   e.ID,
		OwnerID:   e.OwnerID,
		Date:      e.Date,
		Item:      e.Item,
		Amount:    e.Amount,
		Category:  string(e.Category),
		Source:    e.Source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryCreatedMessageFromJSON decodes a message body.
func EntryCreatedMessageFromJSON(data []byte) (*EntryCreatedMessage, error) {
	var msg EntryCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
