package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writeOutput encodes v as indented JSON or as YAML. YAML keys follow the
// JSON field names.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode output")
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return eris.Wrap(err, "encode output")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
