package llm

import (
	"fmt"
	"sync"

	"mnemo/internal/errs"
)

// KeyRing hands out credentials round-robin. After exactly len(keys) calls
// every credential has been returned once and the order is back where it
// started. Safe for concurrent use.
type KeyRing struct {
	mu   sync.Mutex
	keys []string
	next int
}

// NewKeyRing builds a rotator over the given pool. Blank entries are
// dropped; an empty pool fails fast with ErrConfigurationMissing wrapped.
func NewKeyRing(keys []string) (*KeyRing, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no API keys provided: %w", errs.ErrConfigurationMissing)
	}
	return &KeyRing{keys: cleaned}, nil
}

// Next returns the credential at the front and advances the ring.
func (r *KeyRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.keys[r.next]
	r.next = (r.next + 1) % len(r.keys)
	return key
}

// Len returns the pool size.
func (r *KeyRing) Len() int {
	return len(r.keys)
}
