package state

import "strings"

// Normalize drops empty entries and duplicates from a candidate roster,
// preserving first-occurrence order. Rotation order is insertion order, so
// the relative order of survivors is significant.
func Normalize(candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(candidates))
	members := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		member := strings.TrimSpace(candidate)
		if member == "" {
			continue
		}
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		members = append(members, member)
	}
	if len(members) == 0 {
		return nil
	}
	return members
}
