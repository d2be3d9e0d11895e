package backend

import "gopkg.in/yaml.v3"

// orderedMap is a YAML mapping that marshals its keys in insertion order.
// Plain Go maps marshal with sorted keys, which is fine for determinism but
// wrong for documents whose key order carries meaning — a stage list must
// follow the canonical topological order of the graph.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]any)}
}

// set appends or replaces a key while keeping first-insertion order.
func (m *orderedMap) set(key string, value any) *orderedMap {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// MarshalYAML implements yaml.Marshaler.
func (m *orderedMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.values[key]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// marshalDocument renders a root ordered map to the final artifact text.
func marshalDocument(root *orderedMap) (string, error) {
	data, err := yaml.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
