package messaging

import (
	"fmt"
)

const DefaultCapacity = 1024

// MessageBus implements the Bus interface on a buffered channel, so
// ordering and exclusive delivery come from the channel itself rather
// than manual lock discipline. Publish never blocks: a full mailbox is
// reported as an error and the message is dropped.
type MessageBus struct {
	ch chan Message
}

// NewBus creates a message bus with the default capacity
func NewBus() *MessageBus {
	return NewBusWithCapacity(DefaultCapacity)
}

func NewBusWithCapacity(capacity int) *MessageBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageBus{
		ch: make(chan Message, capacity),
	}
}

// Publish appends a message to the mailbox. The sender must be set so
// that recipients can address replies.
func (b *MessageBus) Publish(msg Message) error {
	if msg.From == "" {
		return fmt.Errorf("message has no sender")
	}

	select {
	case b.ch <- msg:
		return nil
	default:
		return fmt.Errorf("mailbox is full, dropping message from %s", msg.From)
	}
}

// Drain removes and returns every pending message in publish order.
// Returns an empty slice when nothing is pending. Each message is
// handed to exactly one caller; concurrent drains never overlap.
func (b *MessageBus) Drain() []Message {
	drained := make([]Message, 0)
	for {
		select {
		case msg := <-b.ch:
			drained = append(drained, msg)
		default:
			return drained
		}
	}
}

// Len returns the number of pending messages.
func (b *MessageBus) Len() int {
	return len(b.ch)
}
