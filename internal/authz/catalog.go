package authz

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is the in-memory registry of permission definitions. It is
// append-mostly: registration happens at bootstrap, lookups happen on every
// authorization check, removal is rare and refused while any role still
// references the permission.
type Catalog struct {
	mu     sync.RWMutex
	byKey  map[string]Permission
	refs   map[string]int
	nextID int32
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byKey: make(map[string]Permission),
		refs:  make(map[string]int),
	}
}

// Register adds a permission definition. The triple must be unique.
func (c *Catalog) Register(resource, action string, scope ScopeLevel) (Permission, error) {
	if resource == "" || action == "" {
		return Permission{}, fmt.Errorf("authz: permission requires resource and action")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	perm := Permission{Resource: resource, Action: action, Scope: scope}
	key := perm.Key()
	if _, exists := c.byKey[key]; exists {
		return Permission{}, fmt.Errorf("%w: %s", ErrDuplicateDefinition, key)
	}
	c.nextID++
	perm.ID = c.nextID
	c.byKey[key] = perm
	return perm, nil
}

// RegisterKey registers a permission from its canonical key form. Used by
// bootstrap to seed module permission lists.
func (c *Catalog) RegisterKey(key string) (Permission, error) {
	resource, action, scope, err := ParseKey(key)
	if err != nil {
		return Permission{}, err
	}
	return c.Register(resource, action, scope)
}

// MustRegisterKeys seeds a list of keys and panics on any failure. Bootstrap
// only; a malformed seed list is a programming error.
func (c *Catalog) MustRegisterKeys(keys ...string) {
	for _, key := range keys {
		if _, err := c.RegisterKey(key); err != nil {
			panic(err)
		}
	}
}

// Lookup resolves a permission by canonical key.
func (c *Catalog) Lookup(key string) (Permission, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	perm, ok := c.byKey[key]
	if !ok {
		return Permission{}, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	return perm, nil
}

// LookupTriple resolves a permission by its triple.
func (c *Catalog) LookupTriple(resource, action string, scope ScopeLevel) (Permission, error) {
	return c.Lookup(Permission{Resource: resource, Action: action, Scope: scope}.Key())
}

// Remove deletes an unreferenced permission definition.
func (c *Catalog) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	if c.refs[key] > 0 {
		return fmt.Errorf("%w: %s referenced by %d role grant(s)", ErrPermissionInUse, key, c.refs[key])
	}
	delete(c.byKey, key)
	delete(c.refs, key)
	return nil
}

// Retain records one role reference to a permission key. The role store
// calls this when a grant is attached to a role.
func (c *Catalog) Retain(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byKey[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, key)
	}
	c.refs[key]++
	return nil
}

// Release drops one role reference to a permission key.
func (c *Catalog) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs[key] > 0 {
		c.refs[key]--
	}
}

// Keys lists every registered permission key in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
