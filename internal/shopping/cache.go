package shopping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AssignmentCache is the durable slot holding the last successful
// GroupingAssignment. Get returns nil when no assignment is stored; the
// engine always revalidates the fingerprint before use, so a stale value is
// never an error. Set overwrites unconditionally (last writer wins).
type AssignmentCache interface {
	Get() (*GroupingAssignment, error)
	Set(a GroupingAssignment) error
}

// MemoryCache is an in-process AssignmentCache, mostly for tests and for
// surfaces that do not need persistence across restarts.
type MemoryCache struct {
	mu sync.Mutex
	a  *GroupingAssignment
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get() (*GroupingAssignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.a == nil {
		return nil, nil
	}
	cp := *c.a
	return &cp, nil
}

func (c *MemoryCache) Set(a GroupingAssignment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.a = &a
	return nil
}

// FileCache persists the assignment as a JSON file on the participant's
// device, so a still-valid grouping survives process restarts.
type FileCache struct {
	mu   sync.Mutex
	path string
}

// NewFileCache creates a FileCache and ensures its directory exists.
func NewFileCache(path string) (*FileCache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileCache{path: path}, nil
}

func (c *FileCache) Get() (*GroupingAssignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", c.path, err)
	}

	var a GroupingAssignment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache file %s: %w", c.path, err)
	}
	return &a, nil
}

func (c *FileCache) Set(a GroupingAssignment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal assignment: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.path, err)
	}
	return nil
}
