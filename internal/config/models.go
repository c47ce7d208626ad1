package config

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// registryVersion is the only file format version this build reads
const registryVersion = 1

// ErrAlreadyConfigured is returned when an account is added twice
var ErrAlreadyConfigured = errors.New("already_configured")

// Registry represents the entire entry configuration file.
// It stores configured accounts and the entities created for each.
type Registry struct {
	Version int               `yaml:"version"`
	Entries map[string]*Entry `yaml:"entries,omitempty"` // Keyed by entry id
}

// Entry is one configured RainMaker account.
// Note: the password is NEVER stored here.
type Entry struct {
	Host               string              `yaml:"host"`
	Username           string              `yaml:"username"`
	IntegrationVersion string              `yaml:"integration_version"`
	CreatedAt          time.Time           `yaml:"created_at"`
	Entities           map[string][]string `yaml:"entities,omitempty"` // Platform to unique ids

	mu sync.Mutex
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: registryVersion,
		Entries: make(map[string]*Entry),
	}
}

// AddEntry creates an entry for an account and returns its new id.
// An account is identified by host and username.
func (r *Registry) AddEntry(host, username, integrationVersion string) (string, *Entry, error) {
	if id, _ := r.FindEntry(host, username); id != "" {
		return "", nil, ErrAlreadyConfigured
	}
	if r.Entries == nil {
		r.Entries = make(map[string]*Entry)
	}

	id := uuid.NewString()
	entry := &Entry{
		Host:               host,
		Username:           username,
		IntegrationVersion: integrationVersion,
		CreatedAt:          time.Now().UTC(),
		Entities:           make(map[string][]string),
	}
	r.Entries[id] = entry
	return id, entry, nil
}

// GetEntry retrieves an entry by id.
// Returns nil if the entry doesn't exist in the registry.
func (r *Registry) GetEntry(id string) *Entry {
	return r.Entries[id]
}

// FindEntry returns the entry for an account, or "" and nil
func (r *Registry) FindEntry(host, username string) (string, *Entry) {
	for id, entry := range r.Entries {
		if entry.Host == host && entry.Username == username {
			return id, entry
		}
	}
	return "", nil
}

// RemoveEntry deletes an entry. Returns false if it didn't exist.
func (r *Registry) RemoveEntry(id string) bool {
	if _, ok := r.Entries[id]; !ok {
		return false
	}
	delete(r.Entries, id)
	return true
}

// EntryIDs returns every entry id in sorted order
func (r *Registry) EntryIDs() []string {
	ids := make([]string, 0, len(r.Entries))
	for id := range r.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup reports whether a unique id is registered under platform
func (e *Entry) Lookup(platform, uniqueID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.Entities[platform] {
		if id == uniqueID {
			return true
		}
	}
	return false
}

// Register records a unique id under platform. Registering twice is a no-op.
func (e *Entry) Register(platform, uniqueID string) error {
	if e.Lookup(platform, uniqueID) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Entities == nil {
		e.Entities = make(map[string][]string)
	}
	e.Entities[platform] = append(e.Entities[platform], uniqueID)
	return nil
}

// EntityCount returns the number of registered entities across platforms
func (e *Entry) EntityCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ids := range e.Entities {
		n += len(ids)
	}
	return n
}

// RemoveEntities forgets every registered entity and returns how many there were
func (e *Entry) RemoveEntities() int {
	n := e.EntityCount()
	e.mu.Lock()
	e.Entities = make(map[string][]string)
	e.mu.Unlock()
	return n
}
