package lender

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadYAML reads a lender directory file:
//
//	lenders:
//	  - lender_type: mca
//	    name: Acme Capital
//	    max_advance: 250000
func LoadYAML(path string) ([]Lender, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lender: read directory %s", path)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a lender directory document.
func ParseYAML(data []byte) ([]Lender, error) {
	var doc struct {
		Lenders []yaml.Node `yaml:"lenders"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "lender: parse directory")
	}

	out := make([]Lender, 0, len(doc.Lenders))
	for i := range doc.Lenders {
		node := &doc.Lenders[i]
		var head struct {
			Type string `yaml:"lender_type"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, eris.Wrapf(err, "lender: entry %d (line %d)", i+1, node.Line)
		}
		l, err := New(ParseType(head.Type))
		if err != nil {
			return nil, eris.Wrapf(err, "lender: entry %d (line %d)", i+1, node.Line)
		}
		if err := node.Decode(l); err != nil {
			return nil, eris.Wrapf(err, "lender: entry %d (line %d)", i+1, node.Line)
		}
		if err := Normalize(l); err != nil {
			return nil, eris.Wrapf(err, "lender: entry %d (line %d)", i+1, node.Line)
		}
		out = append(out, l)
	}
	return out, nil
}
