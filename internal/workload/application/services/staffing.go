package services

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/security"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// SkillRule maps description keywords to a skill.
type SkillRule struct {
	Skill    string   `yaml:"skill"`
	Keywords []string `yaml:"keywords"`
}

// SkillTable is an ordered list of inference rules.
type SkillTable []SkillRule

// DefaultSkillTable is used when no table file is configured.
func DefaultSkillTable() SkillTable {
	return SkillTable{
		{Skill: "react", Keywords: []string{"react", "frontend", "ui", "javascript"}},
		{Skill: "node", Keywords: []string{"node", "backend", "api", "express"}},
		{Skill: "design", Keywords: []string{"design", "figma", "ui/ux", "css"}},
		{Skill: "database", Keywords: []string{"sql", "mongo", "db", "database"}},
		{Skill: "marketing", Keywords: []string{"seo", "content", "social", "marketing"}},
	}
}

// LoadSkillTable reads a YAML list of {skill, keywords} rules.
func LoadSkillTable(path string) (SkillTable, error) {
	data, err := security.ReadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill table: %w", err)
	}
	return ParseSkillTable(data)
}

// ParseSkillTable decodes and normalizes a YAML skill table.
func ParseSkillTable(data []byte) (SkillTable, error) {
	var table SkillTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse skill table: %w", err)
	}
	for i, rule := range table {
		skill := strings.ToLower(strings.TrimSpace(rule.Skill))
		if skill == "" {
			return nil, &domain.ValidationError{Field: "skill", Message: fmt.Sprintf("rule %d has no skill", i)}
		}
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return nil, &domain.ValidationError{Field: "keywords", Message: fmt.Sprintf("skill %q has no keywords", skill)}
		}
		table[i] = SkillRule{Skill: skill, Keywords: keywords}
	}
	return table, nil
}

// InferSkills returns the skills whose keywords occur in description, in
// table order. A skill named by several rules appears once.
func (t SkillTable) InferSkills(description string) []string {
	text := strings.ToLower(description)
	var skills []string
	seen := make(map[string]struct{}, len(t))
	for _, rule := range t {
		if _, ok := seen[rule.Skill]; ok {
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				seen[rule.Skill] = struct{}{}
				skills = append(skills, rule.Skill)
				break
			}
		}
	}
	return skills
}

// SkillMatchScore grades member skills against required skills 0..40.
func SkillMatchScore(memberSkills, required []string) int {
	if len(required) == 0 {
		return 5
	}
	have := make(map[string]struct{}, len(memberSkills))
	for _, s := range memberSkills {
		have[strings.ToLower(s)] = struct{}{}
	}
	matches := 0
	for _, s := range required {
		if _, ok := have[s]; ok {
			matches++
		}
	}

	switch {
	case matches == len(required):
		return 40
	case matches*2 >= len(required):
		return 25
	case matches > 0:
		return 15
	default:
		return 5
	}
}

// AvailabilityScore grades free capacity 10..50.
func AvailabilityScore(capacityPercent int) int {
	switch {
	case capacityPercent < 40:
		return 50
	case capacityPercent < 60:
		return 40
	case capacityPercent < 80:
		return 30
	default:
		return 10
	}
}
