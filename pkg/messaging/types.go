package messaging

import (
	"time"
)

// Message represents a communication between agents
type Message struct {
	From      string    // Agent name of sender
	To        string    // Agent name of recipient (empty means any agent)
	Content   string    // The actual message content
	Timestamp time.Time // When the message was sent
}

// Broadcast reports whether the message is addressed to any agent
// rather than a specific one.
func (m Message) Broadcast() bool {
	return m.To == ""
}

// Bus is the shared mailbox connecting agents. Messages are consumed
// exactly once: Drain hands each message to a single caller, there is
// no fan-out. A broadcast message therefore reaches only the first
// agent that drains after it was published.
type Bus interface {
	// Publish appends a message to the mailbox
	Publish(msg Message) error
	// Drain removes and returns all pending messages in publish order
	Drain() []Message
}
