package services

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known service names
const (
	TransactionsService = "transactions"
	CatalogServiceName  = "catalog"
	AuthServiceName     = "auth"
	ImportServiceName   = "import"
)

// ServiceRegistry lets modules reach each other's functionality through
// interfaces declared in this package instead of importing one another.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

var globalRegistry = &ServiceRegistry{
	services: make(map[string]interface{}),
}

// RegisterService registers a service with the given name, replacing any previous one
func RegisterService[T any](name string, service T) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.services[name] = service
}

// GetService retrieves a service by name with type safety
func GetService[T any](name string) (T, error) {
	var zero T

	service, err := Get(name)
	if err != nil {
		return zero, err
	}

	typedService, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' has wrong type %T", name, service)
	}

	return typedService, nil
}

// MustGetService retrieves a service and panics if not found (for initialization)
func MustGetService[T any](name string) T {
	service, err := GetService[T](name)
	if err != nil {
		panic(fmt.Sprintf("Required service not available: %v", err))
	}
	return service
}

// Get returns the untyped service registered under name
func Get(name string) (interface{}, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	service, exists := globalRegistry.services[name]
	if !exists {
		return nil, fmt.Errorf("service '%s' not found", name)
	}
	return service, nil
}

// Unregister removes a service
func Unregister(name string) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	delete(globalRegistry.services, name)
}

// List returns all registered service names, sorted
func List() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	names := make([]string, 0, len(globalRegistry.services))
	for name := range globalRegistry.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registered service. Used by tests.
func Reset() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.services = make(map[string]interface{})
}
