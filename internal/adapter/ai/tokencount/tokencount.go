// Package tokencount provides token counting for decision-service prompts.
//
// It uses tiktoken-go so prompt sizes can be tracked against the model's
// context window before a call is made.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	c.mu.RLock()
	if enc, ok := c.encodingCache[model]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// cl100k_base covers GPT-4/3.5-era and most OpenAI-compatible models.
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[model] = enc
	return enc, nil
}

// Count returns the token count of text for the given model. On encoding
// errors it falls back to a conservative chars/4 estimate.
func (c *Counter) Count(model, text string) int {
	enc, err := c.encodingFor(model)
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
