package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recurrence is the rule that makes a task repeat.
type Recurrence struct {
	Frequency  string   `json:"frequency"`
	DaysOfWeek []string `json:"days_of_week,omitempty"`
	DayOfMonth int      `json:"day_of_month,omitempty"`

	keys  []string
	nodes map[string]*yaml.Node
}

const (
	recFrequency  = "frequency"
	recDaysOfWeek = "days_of_week"
	recDayOfMonth = "day_of_month"
)

// UnmarshalYAML implements yaml.Unmarshaler. days_of_week accepts either a
// list or a comma-separated string.
func (r *Recurrence) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("recurrence: expected a mapping at line %d", value.Line)
	}
	*r = Recurrence{nodes: make(map[string]*yaml.Node, len(value.Content)/2)}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		v := resolveAlias(value.Content[i+1])
		if _, dup := r.nodes[key]; !dup {
			r.keys = append(r.keys, key)
		}
		r.nodes[key] = v
		r.decodeKnown(key, v)
	}
	return nil
}

func (r *Recurrence) decodeKnown(key string, v *yaml.Node) {
	switch key {
	case recFrequency:
		r.Frequency, _ = scalarString(v)
	case recDaysOfWeek:
		if list, ok := stringList(v); ok {
			r.DaysOfWeek = list
			return
		}
		r.DaysOfWeek = nil
		if s, ok := scalarString(v); ok && s != "" {
			for _, d := range strings.Split(s, ",") {
				if d = strings.TrimSpace(d); d != "" {
					r.DaysOfWeek = append(r.DaysOfWeek, d)
				}
			}
		}
	case recDayOfMonth:
		r.DayOfMonth = 0
		if s, ok := scalarString(v); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				r.DayOfMonth = n
			}
		}
	}
}

// MarshalYAML implements yaml.Marshaler. Fields that still hold their
// decoded value are emitted as written.
func (r Recurrence) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	keys := slices.Clone(r.keys)
	for _, k := range []string{recFrequency, recDaysOfWeek, recDayOfMonth} {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		v, err := r.valueNode(key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out.Content = append(out.Content, keyNode(key), v)
		}
	}
	return out, nil
}

func (r *Recurrence) valueNode(key string) (*yaml.Node, error) {
	orig := r.nodes[key]
	var cur any
	switch key {
	case recFrequency:
		cur = r.Frequency
	case recDaysOfWeek:
		cur = r.DaysOfWeek
	case recDayOfMonth:
		cur = r.DayOfMonth
	default:
		return orig, nil
	}
	if orig != nil {
		var was Recurrence
		was.decodeKnown(key, orig)
		switch key {
		case recFrequency:
			if was.Frequency == r.Frequency {
				return orig, nil
			}
		case recDaysOfWeek:
			if slices.Equal(was.DaysOfWeek, r.DaysOfWeek) {
				return orig, nil
			}
		case recDayOfMonth:
			if was.DayOfMonth == r.DayOfMonth {
				return orig, nil
			}
		}
	}
	switch v := cur.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	case int:
		if v == 0 {
			return nil, nil
		}
	}
	return encodeNode(cur)
}

// Clone returns a deep copy of r.
func (r *Recurrence) Clone() *Recurrence {
	c := *r
	c.DaysOfWeek = slices.Clone(r.DaysOfWeek)
	c.keys = slices.Clone(r.keys)
	if r.nodes != nil {
		c.nodes = make(map[string]*yaml.Node, len(r.nodes))
		for k, v := range r.nodes {
			c.nodes[k] = v
		}
	}
	return &c
}
