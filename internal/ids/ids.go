// Package ids mints the short opaque client identifiers described in
// spec.md §3 ("clientId: stable, short opaque string, generated on
// accept"). The teacher pulls in github.com/google/uuid as an indirect
// dependency already; this promotes it to a direct one and truncates to
// the 8 hex characters the spec's worked examples use (e.g. "aaaaaaaa").
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewClientID returns an 8-character lowercase hex id. Collisions within a
// single process are astronomically unlikely (32 bits of a UUIDv4); the
// Registry is still the source of truth for uniqueness (spec.md §3).
func NewClientID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:8]
}
