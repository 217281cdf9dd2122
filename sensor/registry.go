package sensor

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// A Constructor creates an unloaded sensor.
type Constructor func(deps Dependencies) (Sensor, error)

// Registration describes how to build a sensor type.
type Registration struct {
	Constructor Constructor
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// Register adds a sensor type. It panics when the type is already registered or has no
// constructor.
func Register(typ string, reg Registration) {
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register sensor type %q without a constructor", typ))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := registry[typ]; old {
		panic(errors.Errorf("trying to register two sensors with same type %q", typ))
	}
	registry[typ] = reg
}

// Lookup returns the registration for typ.
func Lookup(typ string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[typ]
	return reg, ok
}

// RegisteredTypes returns every registered type, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// deregister is for tests.
func deregister(typ string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, typ)
}
