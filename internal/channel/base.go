package channel

import (
	"context"
	"slices"

	"github.com/stellarlinkco/leakguard/internal/bus"
)

// Channel is one chat platform connection.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// Command is a bot command advertised to the chat platform.
type Command struct {
	Name        string
	Description string
}

// CommandSetter is implemented by channels that can publish a command list.
type CommandSetter interface {
	SetCommands(cmds []Command)
}

type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	return BaseChannel{
		name:      name,
		bus:       b,
		allowFrom: allowFrom,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

// IsAllowed reports whether senderID may talk to the bot. An empty allow
// list admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	return slices.Contains(c.allowFrom, senderID)
}
