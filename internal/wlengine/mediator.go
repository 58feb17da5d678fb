package wlengine

import (
	"sync"

	"github.com/driftwm/drift/internal/types"
)

// mediator is the shared surface id -> client id table (§4.6, §4.8,
// §9 "Cyclic references": keyed through opaque identifiers, never a
// back-reference to the proxy). Implements wlproxy.Mediator.
type mediator struct {
	mu     sync.Mutex
	owners map[types.SurfaceID]types.ClientID
}

func newMediator() *mediator {
	return &mediator{owners: make(map[types.SurfaceID]types.ClientID)}
}

func (m *mediator) Bind(surface types.SurfaceID, client types.ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[surface] = client
}

func (m *mediator) Unbind(surface types.SurfaceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, surface)
}

func (m *mediator) owner(surface types.SurfaceID) (types.ClientID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.owners[surface]
	return c, ok
}
