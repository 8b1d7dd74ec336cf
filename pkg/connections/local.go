package connections

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// LocalConnection is a credential-free loopback connection used for
// local runs and demos. Posts and replies are kept in memory; the
// timeline action reads them back.
type LocalConnection struct {
	name  string
	posts []string
	mu    sync.Mutex
}

func NewLocalConnection(name string) *LocalConnection {
	return &LocalConnection{
		name: name,
	}
}

func (c *LocalConnection) Name() string {
	return c.name
}

func (c *LocalConnection) IsLLMProvider() bool {
	return false
}

func (c *LocalConnection) Perform(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "post":
		text, _ := params["text"].(string)
		if text == "" {
			text = fmt.Sprintf("post at %s", time.Now().Format(time.RFC3339))
		}
		c.mu.Lock()
		c.posts = append(c.posts, text)
		c.mu.Unlock()
		log.Printf("[%s] post: %s", c.name, text)
		return text, nil
	case "reply":
		text, _ := params["text"].(string)
		log.Printf("[%s] reply: %s", c.name, text)
		return text, nil
	case "read-timeline":
		c.mu.Lock()
		timeline := make([]string, len(c.posts))
		copy(timeline, c.posts)
		c.mu.Unlock()
		return timeline, nil
	default:
		return nil, fmt.Errorf("%w: %s on connection %s", ErrActionNotFound, action, c.name)
	}
}

func (c *LocalConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = nil
	return nil
}
