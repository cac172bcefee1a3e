package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SegmentRule names a set of RFM groups. A rule either lists the groups it
// covers explicitly or bounds each score with an inclusive [min, max] range.
// An omitted range means any score.
type SegmentRule struct {
	Name   string   `yaml:"name"`
	Groups []string `yaml:"groups,omitempty,flow"`
	R      []int    `yaml:"r,omitempty,flow"`
	F      []int    `yaml:"f,omitempty,flow"`
	M      []int    `yaml:"m,omitempty,flow"`
}

// SegmentTable is an ordered list of rules. The first matching rule wins.
type SegmentTable struct {
	Segments []SegmentRule `yaml:"segments"`
}

// DefaultSegments returns the built-in segment table.
func DefaultSegments() *SegmentTable {
	return &SegmentTable{Segments: []SegmentRule{
		{Name: "Champions", R: []int{4, 5}, F: []int{4, 5}, M: []int{4, 5}},
		{Name: "Loyal Customers", R: []int{3, 5}, F: []int{3, 5}, M: []int{3, 5}},
		{Name: "New Customers", R: []int{5, 5}, F: []int{1, 1}},
		{Name: "Potential Loyalists", R: []int{4, 5}, F: []int{1, 3}},
		{Name: "At Risk", R: []int{1, 2}, F: []int{3, 5}},
		{Name: "Lost", Groups: []string{"111"}},
		{Name: "Hibernating", R: []int{1, 2}, F: []int{1, 2}},
		{Name: "Need Attention", R: []int{3, 3}},
		{Name: "Others"},
	}}
}

// LoadSegments reads a YAML segment table from path.
func LoadSegments(path string) (*SegmentTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("segments: read %q: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var table SegmentTable
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("segments: parse %q: %w", path, err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("segments: %q: %w", path, err)
	}
	return &table, nil
}

// Validate checks that every rule has a name and well formed ranges.
func (t *SegmentTable) Validate() error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("no segments defined")
	}
	for i, rule := range t.Segments {
		if rule.Name == "" {
			return fmt.Errorf("segment %d: name is required", i)
		}
		for _, g := range rule.Groups {
			if !validGroup(g) {
				return fmt.Errorf("segment %q: invalid group %q", rule.Name, g)
			}
		}
		for axis, rng := range map[string][]int{"r": rule.R, "f": rule.F, "m": rule.M} {
			if rng == nil {
				continue
			}
			if len(rng) != 2 || rng[0] < 1 || rng[1] > 5 || rng[0] > rng[1] {
				return fmt.Errorf("segment %q: %s range must be [min, max] within 1..5, got %v", rule.Name, axis, rng)
			}
		}
	}
	return nil
}

// Label returns the name of the first rule matching the scores, or "".
func (t *SegmentTable) Label(r, f, m int, group string) string {
	for _, rule := range t.Segments {
		if rule.matches(r, f, m, group) {
			return rule.Name
		}
	}
	return ""
}

func (rule SegmentRule) matches(r, f, m int, group string) bool {
	if len(rule.Groups) > 0 {
		for _, g := range rule.Groups {
			if g == group {
				return true
			}
		}
		return false
	}
	return inRange(rule.R, r) && inRange(rule.F, f) && inRange(rule.M, m)
}

func inRange(rng []int, v int) bool {
	if rng == nil {
		return true
	}
	return v >= rng[0] && v <= rng[1]
}

func validGroup(g string) bool {
	if len(g) != 3 {
		return false
	}
	for _, c := range g {
		if c < '1' || c > '5' {
			return false
		}
	}
	return true
}
