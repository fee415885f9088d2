package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a rules file. A missing file yields DefaultRuleSet. The result
// is validated; see Validate.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRuleSet(), nil
		}
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML (or JSON) rules document. A document
// may be a mapping with a "rules" list or a bare list of rules.
func Parse(data []byte) (*RuleSet, error) {
	rs := &RuleSet{}
	if len(bytes.TrimSpace(data)) > 0 {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
		if err := decode(&node, rs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}
	if err := Validate(rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Decode reads a rules document from r without touching the filesystem.
func Decode(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func decode(doc *yaml.Node, rs *RuleSet) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.SequenceNode {
		return root.Decode(&rs.Rules)
	}
	return root.Decode(rs)
}
