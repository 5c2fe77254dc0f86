package handler

import (
	"sync"

	"github.com/eddostedson/eddo-budg-go/internal/service"
)

// undoRegistry retains undo tokens for the session so a later request can
// apply them. Tokens are not time-bounded; they stay until applied or until
// the process ends.
type undoRegistry struct {
	mu     sync.Mutex
	tokens map[string]*service.UndoToken
}

func newUndoRegistry() *undoRegistry {
	return &undoRegistry{tokens: make(map[string]*service.UndoToken)}
}

func (r *undoRegistry) put(t *service.UndoToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.ID] = t
}

func (r *undoRegistry) get(id string) (*service.UndoToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	return t, ok
}
