package permissions

import (
	"sync"

	"rocket/native/items"
)

// Tier is a catalog entry. Holding the capability item with the same id in the
// configured registry is what grants an account the tier.
type Tier struct {
	ID    uint64
	Label string
}

// AccountStatus carries the two independent moderation flags of an account.
type AccountStatus struct {
	Suspended bool
	Rejected  bool
}

// Directory resolves registry addresses to live capability registries.
type Directory interface {
	Registry(addr [20]byte) (*items.Registry, bool)
}

// Registries is the in-process Directory of every registry the node hosts.
type Registries struct {
	mu  sync.RWMutex
	set map[[20]byte]*items.Registry
}

// NewRegistries indexes the supplied registries by address.
func NewRegistries(regs ...*items.Registry) *Registries {
	d := &Registries{set: make(map[[20]byte]*items.Registry)}
	for _, reg := range regs {
		d.Add(reg)
	}
	return d
}

// Add makes reg resolvable by its address.
func (d *Registries) Add(reg *items.Registry) {
	if reg == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set[reg.Address()] = reg
}

// Registry implements Directory.
func (d *Registries) Registry(addr [20]byte) (*items.Registry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reg, ok := d.set[addr]
	return reg, ok
}
