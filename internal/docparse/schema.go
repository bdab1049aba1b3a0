package docparse

import (
	"embed"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaBusinessName = "business_name"
	schemaApplication  = "application"
	schemaStatements   = "statements"
)

var schemas = mustLoadSchemas(schemaBusinessName, schemaApplication, schemaStatements)

func mustLoadSchemas(names ...string) map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(names))
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			panic(err)
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			panic(eris.Wrapf(err, "docparse: compile schema %s", name))
		}
		out[name] = s
	}
	return out
}

// validate checks a model response against the named response contract.
func validate(name string, doc []byte) error {
	s, ok := schemas[name]
	if !ok {
		return eris.Errorf("docparse: unknown schema %q", name)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return eris.Wrapf(err, "docparse: %s response is not valid JSON", name)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return eris.Errorf("docparse: %s response failed validation: %s", name, strings.Join(errs, "; "))
	}
	return nil
}
