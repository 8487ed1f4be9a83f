package ports

import (
	"fmt"
	"strings"
)

// EmptyScope represents an empty scope
type EmptyScope struct{}

// IsEmpty returns true for EmptyScope
func (EmptyScope) IsEmpty() bool {
	return true
}

// String returns a string representation of EmptyScope
func (EmptyScope) String() string {
	return "empty"
}

// NameScope restricts listing to resources with the given names
type NameScope struct {
	Names []string
}

// NewNameScope creates a new NameScope
func NewNameScope(names ...string) NameScope {
	return NameScope{Names: names}
}

// IsEmpty returns true if NameScope is empty
func (s NameScope) IsEmpty() bool {
	return len(s.Names) == 0
}

// String returns a string representation of NameScope
func (s NameScope) String() string {
	if s.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("names(%s)", strings.Join(s.Names, ","))
}

// Contains reports whether name is part of the scope
func (s NameScope) Contains(name string) bool {
	for _, n := range s.Names {
		if n == name {
			return true
		}
	}
	return false
}

// InScope reports whether name passes the scope filter
func InScope(scope Scope, name string) bool {
	if scope == nil || scope.IsEmpty() {
		return true
	}
	if ns, ok := scope.(NameScope); ok {
		return ns.Contains(name)
	}
	return true
}
