package condition

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Clause pairs a dot-separated field path with its compiled spec.
type Clause struct {
	Path string
	Spec Spec
}

// Set is an ordered list of clauses. Order only affects the order of
// matched paths reported back for explanations.
type Set struct {
	clauses []Clause
}

// NewSet builds a set from already compiled clauses.
func NewSet(clauses ...Clause) Set {
	return Set{clauses: append([]Clause(nil), clauses...)}
}

// Clauses returns a copy of the clauses.
func (s Set) Clauses() []Clause { return append([]Clause(nil), s.clauses...) }

// Len returns the number of clauses.
func (s Set) Len() int { return len(s.clauses) }

// ParseSet compiles a raw mapping of path → spec. A raw value that is not a
// mapping yields an empty set, which never matches. Paths are sorted since
// a decoded map carries no order.
func ParseSet(raw any) (Set, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Set{}, nil
	}
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	set := Set{clauses: make([]Clause, 0, len(paths))}
	for _, p := range paths {
		spec, err := ParseSpec(m[p])
		if err != nil {
			return Set{}, fmt.Errorf("condition %q: %w", p, err)
		}
		set.clauses = append(set.clauses, Clause{Path: p, Spec: spec})
	}
	return set, nil
}

// UnmarshalYAML keeps the document order of the mapping.
func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		*s = Set{}
		return nil
	}
	set := Set{clauses: make([]Clause, 0, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		path := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("condition %q: %w", path, err)
		}
		spec, err := ParseSpec(raw)
		if err != nil {
			return fmt.Errorf("condition %q (line %d): %w", path, node.Content[i].Line, err)
		}
		set.clauses = append(set.clauses, Clause{Path: path, Spec: spec})
	}
	*s = set
	return nil
}

// MarshalYAML renders the original declarations.
func (s Set) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range s.clauses {
		var value yaml.Node
		if err := value.Encode(c.Spec.Raw()); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: c.Path},
			&value,
		)
	}
	return node, nil
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set, err := ParseSet(raw)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

func (s Set) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.clauses))
	for _, c := range s.clauses {
		m[c.Path] = c.Spec.Raw()
	}
	return json.Marshal(m)
}
