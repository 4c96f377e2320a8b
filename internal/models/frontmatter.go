package models

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML metadata block of a note. Well-known keys are
// decoded into typed fields; every other key, and any well-known key whose
// value has an unexpected shape, is carried verbatim so that a
// read-modify-write cycle keeps it.
type Frontmatter struct {
	Title             string      `json:"title,omitempty"`
	ZettelID          string      `json:"zettelid,omitempty"`
	Date              string      `json:"date,omitempty"`
	DateCreated       string      `json:"dateCreated,omitempty"`
	DateModified      string      `json:"dateModified,omitempty"`
	Status            string      `json:"status,omitempty"`
	Due               string      `json:"due,omitempty"`
	Tags              []string    `json:"tags,omitempty"`
	Priority          string      `json:"priority,omitempty"`
	Contexts          []string    `json:"contexts,omitempty"`
	Recurrence        *Recurrence `json:"recurrence,omitempty"`
	CompleteInstances []string    `json:"complete_instances,omitempty"`

	// keys holds the keys in document order.
	keys []string
	// nodes holds the original value node of every key seen on decode.
	nodes map[string]*yaml.Node
}

// knownKeys lists the typed keys in the order they are appended when absent
// from the source document.
var knownKeys = []string{
	KeyTitle, KeyZettelID, KeyDate, KeyDateCreated, KeyDateModified,
	KeyStatus, KeyDue, KeyTags, KeyPriority, KeyContexts,
	KeyRecurrence, KeyCompleteInstances,
}

func isKnownKey(key string) bool { return slices.Contains(knownKeys, key) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Frontmatter) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = resolveAlias(value.Content[0])
	}
	*f = Frontmatter{}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("frontmatter: expected a mapping at line %d", value.Line)
	}
	f.nodes = make(map[string]*yaml.Node, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		v := resolveAlias(value.Content[i+1])
		if _, dup := f.nodes[key]; !dup {
			f.keys = append(f.keys, key)
		}
		f.nodes[key] = v
		f.decodeKnown(key, v)
	}
	return nil
}

// decodeKnown sets the typed field for key. A value of the wrong shape
// leaves the field zero; the original node still round-trips.
func (f *Frontmatter) decodeKnown(key string, v *yaml.Node) {
	switch key {
	case KeyTitle:
		f.Title, _ = scalarString(v)
	case KeyZettelID:
		f.ZettelID, _ = scalarString(v)
	case KeyDate:
		f.Date, _ = scalarString(v)
	case KeyDateCreated:
		f.DateCreated, _ = scalarString(v)
	case KeyDateModified:
		f.DateModified, _ = scalarString(v)
	case KeyStatus:
		f.Status, _ = scalarString(v)
	case KeyDue:
		f.Due, _ = scalarString(v)
	case KeyPriority:
		f.Priority, _ = scalarString(v)
	case KeyTags:
		f.Tags, _ = stringList(v)
	case KeyContexts:
		f.Contexts, _ = stringList(v)
	case KeyCompleteInstances:
		f.CompleteInstances, _ = stringList(v)
	case KeyRecurrence:
		f.Recurrence = nil
		if v.Kind != yaml.MappingNode || len(v.Content) == 0 {
			return
		}
		var r Recurrence
		if err := v.Decode(&r); err == nil {
			f.Recurrence = &r
		}
	}
}

// field returns the typed value of a known key.
func (f *Frontmatter) field(key string) any {
	switch key {
	case KeyTitle:
		return f.Title
	case KeyZettelID:
		return f.ZettelID
	case KeyDate:
		return f.Date
	case KeyDateCreated:
		return f.DateCreated
	case KeyDateModified:
		return f.DateModified
	case KeyStatus:
		return f.Status
	case KeyDue:
		return f.Due
	case KeyPriority:
		return f.Priority
	case KeyTags:
		return f.Tags
	case KeyContexts:
		return f.Contexts
	case KeyCompleteInstances:
		return f.CompleteInstances
	case KeyRecurrence:
		return f.Recurrence
	}
	return nil
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case []string:
		return x == nil
	case *Recurrence:
		return x == nil
	}
	return v == nil
}

// MarshalYAML implements yaml.Marshaler. Keys keep their document order;
// well-known keys that were not in the source are appended in a fixed order.
func (f Frontmatter) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	emitted := make(map[string]bool, len(f.keys)+len(knownKeys))

	for _, key := range f.keys {
		v, err := f.valueNode(key, true)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out.Content = append(out.Content, keyNode(key), v)
		emitted[key] = true
	}
	for _, key := range knownKeys {
		if emitted[key] {
			continue
		}
		v, err := f.valueNode(key, false)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out.Content = append(out.Content, keyNode(key), v)
	}
	return out, nil
}

// valueNode returns the node to emit for key, or nil to skip it.
func (f *Frontmatter) valueNode(key string, present bool) (*yaml.Node, error) {
	orig := f.nodes[key]
	if !isKnownKey(key) {
		return orig, nil
	}
	cur := f.field(key)
	if orig != nil {
		var was Frontmatter
		was.decodeKnown(key, orig)
		if reflect.DeepEqual(was.field(key), cur) {
			return orig, nil
		}
	}
	if isZero(cur) {
		switch {
		case key == KeyCompleteInstances && f.Recurrence != nil:
			return encodeNode([]string{})
		case !present:
			return nil, nil
		case key == KeyTags || key == KeyContexts || key == KeyCompleteInstances:
			return encodeNode([]string{})
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return encodeNode(cur)
}

func encodeNode(v any) (*yaml.Node, error) {
	n := new(yaml.Node)
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}
	if n.Kind == yaml.SequenceNode && len(n.Content) == 0 {
		n.Style = yaml.FlowStyle
	}
	return n, nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

// Keys returns the frontmatter keys in document order.
func (f *Frontmatter) Keys() []string { return slices.Clone(f.keys) }

// Has reports whether key was present in the decoded document.
func (f *Frontmatter) Has(key string) bool {
	_, ok := f.nodes[key]
	return ok
}

// Empty reports whether the frontmatter carries no keys at all.
func (f *Frontmatter) Empty() bool {
	if len(f.keys) > 0 {
		return false
	}
	for _, key := range knownKeys {
		if !isZero(f.field(key)) {
			return false
		}
	}
	return true
}

// Decode decodes the raw value of key into out.
// It reports false when the key is absent.
func (f *Frontmatter) Decode(key string, out any) (bool, error) {
	n, ok := f.nodes[key]
	if !ok {
		return false, nil
	}
	if err := n.Decode(out); err != nil {
		return true, fmt.Errorf("frontmatter: decode %q: %w", key, err)
	}
	return true, nil
}

// Int returns the integer value of key, or 0 if absent or not a number.
func (f *Frontmatter) Int(key string) int {
	n, ok := f.nodes[key]
	if !ok || n.Kind != yaml.ScalarNode {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		return 0
	}
	return v
}

// Bool returns the boolean value of key, or false if absent or not a bool.
func (f *Frontmatter) Bool(key string) bool {
	var b bool
	if _, err := f.Decode(key, &b); err != nil {
		return false
	}
	return b
}

// Extra returns the keys without a typed field, decoded to plain values.
func (f *Frontmatter) Extra() map[string]any {
	out := make(map[string]any)
	for _, key := range f.keys {
		if isKnownKey(key) {
			continue
		}
		var v any
		if err := f.nodes[key].Decode(&v); err == nil {
			out[key] = v
		}
	}
	return out
}

// Set stores an arbitrary value under a key without a typed field.
func (f *Frontmatter) Set(key string, value any) error {
	if isKnownKey(key) {
		return fmt.Errorf("frontmatter: %q has a typed field", key)
	}
	n, err := encodeNode(value)
	if err != nil {
		return err
	}
	if f.nodes == nil {
		f.nodes = make(map[string]*yaml.Node)
	}
	if _, ok := f.nodes[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.nodes[key] = n
	return nil
}

// Clone returns a deep copy. Raw YAML nodes are shared; they are never
// modified in place.
func (f *Frontmatter) Clone() *Frontmatter {
	c := *f
	c.Tags = slices.Clone(f.Tags)
	c.Contexts = slices.Clone(f.Contexts)
	c.CompleteInstances = slices.Clone(f.CompleteInstances)
	if f.Recurrence != nil {
		c.Recurrence = f.Recurrence.Clone()
	}
	c.keys = slices.Clone(f.keys)
	if f.nodes != nil {
		c.nodes = make(map[string]*yaml.Node, len(f.nodes))
		for k, v := range f.nodes {
			c.nodes[k] = v
		}
	}
	return &c
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// scalarString returns the text of a scalar node; null yields "".
func scalarString(n *yaml.Node) (string, bool) {
	n = resolveAlias(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	if n.Tag == "!!null" {
		return "", true
	}
	return n.Value, true
}

// stringList decodes a sequence of scalars. Any other shape is rejected.
func stringList(n *yaml.Node) ([]string, bool) {
	n = resolveAlias(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, false
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, ok := scalarString(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
