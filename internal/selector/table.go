package selector

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Table is a selector → handler mapping decoded from YAML that keeps
// document order, which a plain map would lose:
//
//	selectors:
//	  "0xa9059cbb": handlers.Transfer
//	  "0x40c10f19": handlers.Mint
type Table []Entry

// UnmarshalYAML accepts either a mapping (selector: handler) or a sequence of
// {selector, handler} objects.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(Table, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode || val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: selector table entries must be scalars", key.Line)
			}
			out = append(out, Entry{Selector: key.Value, Handler: val.Value})
		}
		*t = out
		return nil
	case yaml.SequenceNode:
		var entries []Entry
		if err := node.Decode(&entries); err != nil {
			return err
		}
		*t = entries
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*t = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: selector table must be a mapping or a sequence", node.Line)
}

// Registry builds an immutable registry from the table.
func (t Table) Registry() (*Registry, error) {
	return New(t...)
}
