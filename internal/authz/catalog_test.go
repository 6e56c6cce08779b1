package authz

import (
	"errors"
	"testing"
)

func TestCatalogRegisterAndLookup(t *testing.T) {
	c := NewCatalog()
	perm, err := c.Register("reservation", "view", ScopeProperty)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if perm.Key() != "reservation.view.property" {
		t.Fatalf("unexpected key %q", perm.Key())
	}
	got, err := c.Lookup("reservation.view.property")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != perm.ID {
		t.Fatalf("expected id %d, got %d", perm.ID, got.ID)
	}
}

func TestCatalogDuplicateDefinition(t *testing.T) {
	c := NewCatalog()
	if _, err := c.Register("reservation", "view", ScopeProperty); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := c.Register("reservation", "view", ScopeProperty)
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("expected ErrDuplicateDefinition, got %v", err)
	}
	// Same resource/action at a different scope is a distinct permission.
	if _, err := c.Register("reservation", "view", ScopeOrganization); err != nil {
		t.Fatalf("register distinct scope: %v", err)
	}
}

func TestCatalogLookupUnknown(t *testing.T) {
	c := NewCatalog()
	_, err := c.Lookup("ghost.read.own")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestCatalogRemoveInUse(t *testing.T) {
	c := NewCatalog()
	c.MustRegisterKeys("document.read.own")
	if err := c.Retain("document.read.own"); err != nil {
		t.Fatalf("retain: %v", err)
	}
	if err := c.Remove("document.read.own"); !errors.Is(err, ErrPermissionInUse) {
		t.Fatalf("expected ErrPermissionInUse, got %v", err)
	}
	c.Release("document.read.own")
	if err := c.Remove("document.read.own"); err != nil {
		t.Fatalf("remove unreferenced: %v", err)
	}
	if _, err := c.Lookup("document.read.own"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected removed permission to be unknown, got %v", err)
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "reservation.view", "a.b.c.d", "reservation.view.galaxy"} {
		if _, _, _, err := ParseKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}
