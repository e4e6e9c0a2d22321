// Package domain holds the TeamFlow workload model: team members, their
// replicated tasks and the derived capacity and priority caches.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Member is a team member as replicated from the projects API.
type Member struct {
	UserID     string
	Name       string
	Email      string
	Role       string
	Skills     []string
	LastSynced time.Time
}

// NormalizeSkills lowercases, trims and deduplicates skills. The result
// is sorted so equal sets compare equal.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasSkill reports whether the member has skill (case-insensitive).
func (m Member) HasSkill(skill string) bool {
	skill = strings.ToLower(skill)
	for _, s := range m.Skills {
		if strings.ToLower(s) == skill {
			return true
		}
	}
	return false
}

// DisplayName falls back to the user ID when no name was synced.
func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.UserID
}
