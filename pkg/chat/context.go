// Package chat holds the conversation history of a coaching session.
package chat

import (
	"sync"

	"github.com/teslashibe/go-coach/pkg/inference"
)

// Context is the ordered message history shared by a session's turns.
// Entries are only ever appended; nothing is pruned or reordered.
type Context struct {
	mu       sync.RWMutex
	messages []inference.Message
}

// NewContext creates a history seeded with a system instruction.
// An empty instruction yields an empty history.
func NewContext(instructions string) *Context {
	c := &Context{}
	if instructions != "" {
		c.messages = append(c.messages, inference.NewSystemMessage(instructions))
	}
	return c
}

// Append adds msg at the end.
func (c *Context) Append(msg inference.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Messages returns a copy of the history, oldest first.
func (c *Context) Messages() []inference.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]inference.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of entries.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Last returns the newest entry.
func (c *Context) Last() (inference.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return inference.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Count returns how many entries have the given role.
func (c *Context) Count(role inference.Role) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
