package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Structured columns (import errors, warnings, and the raw extraction) are
// JSONB in Postgres and TEXT in SQLite. Both stores encode and decode them
// here and nowhere else.

func encodeStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", eris.Wrap(err, "store: encode string list")
	}
	return string(b), nil
}

func decodeStrings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode string list")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// encodeRaw returns the raw extraction payload as a JSON document. An empty
// payload is stored as JSON null.
func encodeRaw(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "null", nil
	}
	if !json.Valid(raw) {
		return "", eris.New("store: raw extraction is not valid JSON")
	}
	return string(raw), nil
}

func decodeRaw(raw []byte) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
