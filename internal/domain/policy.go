package domain

import (
	"fmt"
	"strings"
)

// PairPolicy decides which role pairs may open a direct conversation.
// Entries are symmetric and same-role pairs are always allowed.
type PairPolicy struct {
	allowed map[[2]ChatRole]struct{}
}

// NewPairPolicy builds a policy from "role:role" entries.
func NewPairPolicy(pairs []string) (*PairPolicy, error) {
	p := &PairPolicy{allowed: make(map[[2]ChatRole]struct{}, len(pairs)*2)}
	for _, entry := range pairs {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed role pair %q", entry)
		}
		a := ChatRole(strings.ToLower(strings.TrimSpace(parts[0])))
		b := ChatRole(strings.ToLower(strings.TrimSpace(parts[1])))
		if !a.IsValid() || !b.IsValid() {
			return nil, fmt.Errorf("unknown role in pair %q", entry)
		}
		p.allowed[[2]ChatRole{a, b}] = struct{}{}
		p.allowed[[2]ChatRole{b, a}] = struct{}{}
	}
	return p, nil
}

// Allowed reports whether two roles may share a direct room.
func (p *PairPolicy) Allowed(a, b ChatRole) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}
	if a == b {
		return true
	}
	_, ok := p.allowed[[2]ChatRole{a, b}]
	return ok
}
