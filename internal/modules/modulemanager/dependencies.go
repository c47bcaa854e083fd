package modulemanager

import (
	"fmt"
	"sort"

	"github.com/mantonx/medialibrary/internal/logger"
)

// DependencyProvider is an optional interface for modules that declare dependencies
type DependencyProvider interface {
	// Dependencies returns the list of module IDs this module depends on
	Dependencies() []string
}

// ServiceProvider is an optional interface for modules that provide services
type ServiceProvider interface {
	ProvidedServices() []string
}

// ServiceConsumer is an optional interface for modules that consume services
type ServiceConsumer interface {
	RequiredServices() []string
}

// ModuleDependencyGraph represents the dependency relationships between modules
type ModuleDependencyGraph struct {
	nodes        map[string]*DependencyNode
	serviceGraph map[string]string // service name -> module ID that provides it
}

// DependencyNode represents a module in the dependency graph
type DependencyNode struct {
	ModuleID         string
	Module           Module
	Dependencies     []string
	Dependents       []string
	ProvidedServices []string
	RequiredServices []string
	InitOrder        int
}

// BuildDependencyGraph creates a dependency graph from the given modules.
// Required services resolve to a dependency on the providing module;
// a dependency on a module that is absent (or disabled) is an error.
func BuildDependencyGraph(modules map[string]Module) (*ModuleDependencyGraph, error) {
	graph := &ModuleDependencyGraph{
		nodes:        make(map[string]*DependencyNode),
		serviceGraph: make(map[string]string),
	}

	for _, id := range sortedKeys(modules) {
		module := modules[id]
		node := &DependencyNode{ModuleID: id, Module: module}

		if depProvider, ok := module.(DependencyProvider); ok {
			node.Dependencies = append(node.Dependencies, depProvider.Dependencies()...)
		}
		if serviceProvider, ok := module.(ServiceProvider); ok {
			node.ProvidedServices = serviceProvider.ProvidedServices()
			for _, service := range node.ProvidedServices {
				if existing, exists := graph.serviceGraph[service]; exists {
					return nil, fmt.Errorf("service '%s' is provided by multiple modules: %s and %s",
						service, existing, id)
				}
				graph.serviceGraph[service] = id
			}
		}
		if serviceConsumer, ok := module.(ServiceConsumer); ok {
			node.RequiredServices = serviceConsumer.RequiredServices()
		}

		graph.nodes[id] = node
	}

	for _, id := range sortedKeys(graph.nodes) {
		node := graph.nodes[id]
		for _, requiredService := range node.RequiredServices {
			providerID, exists := graph.serviceGraph[requiredService]
			if !exists {
				return nil, fmt.Errorf("module %s requires service '%s' but no provider is enabled", id, requiredService)
			}
			if providerID != id && !contains(node.Dependencies, providerID) {
				node.Dependencies = append(node.Dependencies, providerID)
			}
		}
		sort.Strings(node.Dependencies)
	}

	for _, id := range sortedKeys(graph.nodes) {
		for _, depID := range graph.nodes[id].Dependencies {
			depNode, exists := graph.nodes[depID]
			if !exists {
				return nil, fmt.Errorf("module %s depends on missing module %s", id, depID)
			}
			depNode.Dependents = append(depNode.Dependents, id)
		}
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}

	return graph, nil
}

// detectCycles uses a three-colour DFS
func (g *ModuleDependencyGraph) detectCycles() error {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(g.nodes))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		colour[id] = grey
		path = append(path, id)
		for _, depID := range g.nodes[id].Dependencies {
			switch colour[depID] {
			case grey:
				for i, p := range path {
					if p == depID {
						return fmt.Errorf("circular dependency detected: %v", append(path[i:], depID))
					}
				}
			case white:
				if err := visit(depID, path); err != nil {
					return err
				}
			}
		}
		colour[id] = black
		return nil
	}

	for _, id := range sortedKeys(g.nodes) {
		if colour[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetInitializationOrder returns modules so that every module follows its
// dependencies. Ties are broken by module ID, so the order is stable.
func (g *ModuleDependencyGraph) GetInitializationOrder() ([]Module, error) {
	order := make([]Module, 0, len(g.nodes))
	visited := make(map[string]bool)

	var visit func(string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true

		node := g.nodes[nodeID]
		for _, depID := range node.Dependencies {
			visit(depID)
		}
		order = append(order, node.Module)
		node.InitOrder = len(order)
	}

	for _, id := range sortedKeys(g.nodes) {
		visit(id)
	}
	return order, nil
}

// LogDependencyInfo logs the graph at debug level
func (g *ModuleDependencyGraph) LogDependencyInfo() {
	log := logger.Named("modules")
	for _, id := range sortedKeys(g.nodes) {
		node := g.nodes[id]
		log.Debug("module dependencies",
			"module", id,
			"depends_on", node.Dependencies,
			"provides", node.ProvidedServices,
			"requires", node.RequiredServices,
			"init_order", node.InitOrder)
	}
}

// GetModuleDependencies returns the dependencies for a specific module
func (g *ModuleDependencyGraph) GetModuleDependencies(moduleID string) ([]string, error) {
	node, exists := g.nodes[moduleID]
	if !exists {
		return nil, fmt.Errorf("module %s not found", moduleID)
	}
	return node.Dependencies, nil
}

// GetModuleDependents returns the modules that depend on a specific module
func (g *ModuleDependencyGraph) GetModuleDependents(moduleID string) ([]string, error) {
	node, exists := g.nodes[moduleID]
	if !exists {
		return nil, fmt.Errorf("module %s not found", moduleID)
	}
	return node.Dependents, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
