package compute

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// BackendEnvVar names the environment variable consulted by Resolve when no
// driver name is given.
const BackendEnvVar = "GPUREDUCE_BACKEND"

type registration struct {
	driver   Driver
	priority int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register makes a driver available by name. Drivers with a higher priority
// are preferred by Resolve. Registering the same name again replaces the
// previous driver; passing a nil driver panics.
func Register(d Driver, priority int) {
	if d == nil {
		panic("compute: Register driver is nil")
	}
	registryMu.Lock()
	registry[d.Name()] = registration{driver: d, priority: priority}
	registryMu.Unlock()
}

// Unregister removes the driver called name, if any.
func Unregister(name string) {
	registryMu.Lock()
	delete(registry, name)
	registryMu.Unlock()
}

// Names returns the registered driver names, highest priority first.
func Names() []string {
	regs := sorted()
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.driver.Name()
	}
	return names
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	registryMu.RLock()
	r, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownDriver, name, Names())
	}
	return r.driver, nil
}

// Resolve picks a driver. A non-empty name must be registered and available.
// An empty name falls back to $GPUREDUCE_BACKEND and then to the available
// driver with the highest priority.
func Resolve(name string) (Driver, error) {
	if name == "" {
		name = os.Getenv(BackendEnvVar)
	}
	if name != "" {
		d, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if !d.Available() {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
		}
		return d, nil
	}
	for _, r := range sorted() {
		if r.driver.Available() {
			return r.driver, nil
		}
	}
	return nil, fmt.Errorf("%w: none of %v", ErrUnavailable, Names())
}

func sorted() []registration {
	registryMu.RLock()
	regs := make([]registration, 0, len(registry))
	for _, r := range registry {
		regs = append(regs, r)
	}
	registryMu.RUnlock()
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].driver.Name() < regs[j].driver.Name()
	})
	return regs
}
