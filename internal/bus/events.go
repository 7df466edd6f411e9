package bus

import (
	"strconv"
	"time"
)

type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// UserID parses SenderID as the numeric id chat platforms use.
func (m *InboundMessage) UserID() (int64, error) {
	return strconv.ParseInt(m.SenderID, 10, 64)
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	ReplyTo string
	// Keyboard, when set, replaces the reply keyboard shown under the message.
	// Each inner slice is one row of button labels.
	Keyboard [][]string
	Metadata map[string]any
}
