package tokencount

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingCache avoids re-initializing the same BPE encoding repeatedly;
// encodings are expensive to build and safe to share across counters.
var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TokenizerCounter counts tokens with tiktoken's BPE encodings, giving an
// exact count for models tiktoken knows about and a cl100k_base-based
// approximation for everything else.
type TokenizerCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenizerCounter builds a TokenizerCounter for the given model name.
// Unknown models fall back to the cl100k_base encoding.
func NewTokenizerCounter(model string) (*TokenizerCounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TokenizerCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokencount: failed to load encoding for %q: %w", model, err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenizerCounter{encoding: encoding, model: model}, nil
}

// Count implements Counter.
func (t *TokenizerCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessages implements Counter.
func (t *TokenizerCounter) CountMessages(messages []Message) int {
	if len(messages) == 0 {
		return 0
	}
	total := replyPriming
	for _, m := range messages {
		total += messageOverhead
		total += len(t.encoding.Encode(m.Role, nil, nil))
		total += len(t.encoding.Encode(m.Content, nil, nil))
	}
	return total
}

// Model returns the model name this counter was built for.
func (t *TokenizerCounter) Model() string {
	return t.model
}

var _ Counter = (*TokenizerCounter)(nil)
