package entity

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/logging"
)

// Registry records which unique ids have been created per platform
type Registry interface {
	Lookup(platform, uniqueID string) bool
	Register(platform, uniqueID string) error
}

// MemoryRegistry is a Registry that lives for one process
type MemoryRegistry struct {
	mu  sync.Mutex
	ids map[string]map[string]struct{}
}

// NewMemoryRegistry returns an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: make(map[string]map[string]struct{})}
}

// Lookup reports whether uniqueID is registered under platform
func (r *MemoryRegistry) Lookup(platform, uniqueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[platform][uniqueID]
	return ok
}

// Register records uniqueID under platform
func (r *MemoryRegistry) Register(platform, uniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids[platform] == nil {
		r.ids[platform] = make(map[string]struct{})
	}
	r.ids[platform][uniqueID] = struct{}{}
	return nil
}

// Set is the collection of entities created for one entry
type Set struct {
	entities []Entity
	byID     map[string]Entity
}

func newSet() *Set {
	return &Set{byID: make(map[string]Entity)}
}

func (s *Set) add(e Entity) {
	s.entities = append(s.entities, e)
	s.byID[e.UniqueID()] = e
}

// Setup derives every platform's entities from the coordinator's current
// snapshot and registers them. Climate entities whose unique id is already
// registered are skipped.
func Setup(entryID string, coord Coordinator, registry Registry) (*Set, error) {
	set := newSet()
	for _, p := range Platforms {
		entities := setupPlatform(p, entryID, coord, registry)
		for _, e := range entities {
			if err := registry.Register(string(p), e.UniqueID()); err != nil {
				return nil, fmt.Errorf("failed to register %s %s: %w", p, e.UniqueID(), err)
			}
			set.add(e)
		}
		logging.Info("Platform set up",
			zap.String("entry_id", entryID),
			zap.String("platform", string(p)),
			zap.Int("entities", len(entities)),
		)
	}
	return set, nil
}

func setupPlatform(p Platform, entryID string, coord Coordinator, registry Registry) []Entity {
	snap := coord.Snapshot()

	var out []Entity
	for _, nodeID := range snap.NodeIDs() {
		node := snap.Node(nodeID)
		nodeName := NodeName(node, nodeID)

		if p == PlatformClimate {
			if !HasClimate(node) {
				logging.Debug("Node has no temp parameter, skipping climate", zap.String("node_id", nodeID))
				continue
			}
			c := NewClimate(entryID, nodeID, nodeName, coord)
			if registry.Lookup(string(p), c.UniqueID()) {
				logging.Debug("Climate already registered, skipping", zap.String("unique_id", c.UniqueID()))
				continue
			}
			out = append(out, c)
			continue
		}

		for _, name := range node.Names() {
			param := node.Get(name)
			switch {
			case p == PlatformSensor && IsSensor(param):
				out = append(out, NewSensor(entryID, nodeID, nodeName, name, coord))
			case p == PlatformBinarySensor && IsBinarySensor(param):
				out = append(out, NewBinarySensor(entryID, nodeID, nodeName, name, coord))
			case p == PlatformSwitch && IsSwitch(param):
				out = append(out, NewSwitch(entryID, nodeID, nodeName, name, coord))
			case p == PlatformNumber && IsNumber(param):
				out = append(out, NewNumber(entryID, nodeID, nodeName, name, param.Bounds, coord))
			}
		}
	}
	return out
}

// All returns every entity in setup order
func (s *Set) All() []Entity {
	return append([]Entity(nil), s.entities...)
}

// Len returns the number of entities
func (s *Set) Len() int {
	return len(s.entities)
}

// Get returns the entity with this unique id
func (s *Set) Get(uniqueID string) (Entity, error) {
	e, ok := s.byID[uniqueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	return e, nil
}

// ByPlatform returns the entities of one platform
func (s *Set) ByPlatform(p Platform) []Entity {
	var out []Entity
	for _, e := range s.entities {
		if e.Platform() == p {
			out = append(out, e)
		}
	}
	return out
}

// UniqueIDs groups every unique id by platform
func (s *Set) UniqueIDs() map[string][]string {
	out := make(map[string][]string)
	for _, e := range s.entities {
		out[string(e.Platform())] = append(out[string(e.Platform())], e.UniqueID())
	}
	return out
}

func lookup[T Entity](s *Set, uniqueID string) (T, error) {
	var zero T
	e, err := s.Get(uniqueID)
	if err != nil {
		return zero, err
	}
	typed, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is a %s", ErrNotFound, uniqueID, e.Platform())
	}
	return typed, nil
}

// Climate, Switch and Number return the entity of that type, or ErrNotFound
func (s *Set) Climate(uniqueID string) (*Climate, error) { return lookup[*Climate](s, uniqueID) }
func (s *Set) Switch(uniqueID string) (*Switch, error)   { return lookup[*Switch](s, uniqueID) }
func (s *Set) Number(uniqueID string) (*Number, error)   { return lookup[*Number](s, uniqueID) }

// Describe returns the current state of every entity
func (s *Set) Describe() []State {
	states := make([]State, 0, len(s.entities))
	for _, e := range s.entities {
		states = append(states, e.State())
	}
	return states
}
