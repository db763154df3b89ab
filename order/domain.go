package order

import (
	"fmt"
	"strings"
)

// Domain identifies one ordering domain.
type Domain struct {
	// Kind is the type of list (e.g., "membership_plan"). Must not contain '#'.
	Kind string

	// Scope is the owner of the list (e.g., a company ID).
	Scope string
}

// NewDomain returns a validated Domain.
func NewDomain(kind, scope string) (Domain, error) {
	d := Domain{Kind: kind, Scope: scope}
	if err := d.Validate(); err != nil {
		return Domain{}, err
	}
	return d, nil
}

// Validate reports whether the domain can be used as a key.
func (d Domain) Validate() error {
	if d.Kind == "" || d.Scope == "" {
		return fmt.Errorf("%w: kind and scope are required", ErrInvalidDomain)
	}
	if strings.Contains(d.Kind, "#") {
		return fmt.Errorf("%w: kind %q contains '#'", ErrInvalidDomain, d.Kind)
	}
	return nil
}

// Key returns the type-qualified domain key (e.g., "membership_plan#company-42").
func (d Domain) Key() string {
	return d.Kind + "#" + d.Scope
}

func (d Domain) String() string {
	return d.Key()
}

// ParseDomain parses a key produced by Domain.Key.
func ParseDomain(key string) (Domain, error) {
	kind, scope, ok := strings.Cut(key, "#")
	if !ok {
		return Domain{}, fmt.Errorf("%w: %q", ErrInvalidDomain, key)
	}
	return NewDomain(kind, scope)
}
