// Package schema defines the canonical resume document stored as profile data.
//
// The document follows the JSON Resume layout: a basics object plus a set of
// list sections. Parsed or edited data is always merged over the canonical
// empty document so every section key is present.
package schema

import (
	"encoding/json"
	"fmt"
)

// Document is a resume document keyed by section name.
type Document map[string]any

// Sections lists the top-level list sections in canonical order.
var Sections = []string{
	"work",
	"volunteer",
	"education",
	"awards",
	"certificates",
	"publications",
	"skills",
	"languages",
	"interests",
	"references",
	"projects",
}

// Empty returns a fresh canonical empty document.
func Empty() Document {
	doc := Document{
		"basics": map[string]any{
			"name":    "",
			"label":   "",
			"image":   "",
			"email":   "",
			"phone":   "",
			"url":     "",
			"summary": "",
			"location": map[string]any{
				"address":     "",
				"postalCode":  "",
				"city":        "",
				"countryCode": "",
				"region":      "",
			},
			"profiles": []any{},
		},
	}
	for _, s := range Sections {
		doc[s] = []any{}
	}
	return doc
}

// Merge overlays content on the canonical empty document. Top-level keys in
// content replace the canonical value wholesale; unknown keys are kept.
func Merge(content map[string]any) Document {
	out := Empty()
	for k, v := range content {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// IsEmpty reports whether the document carries no user data at all.
func IsEmpty(doc Document) bool {
	if len(doc) == 0 {
		return true
	}
	return isBlank(map[string]any(doc))
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		for _, inner := range t {
			if !isBlank(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Decode parses raw JSON into a Document. The payload must be a JSON object.
func Decode(raw []byte) (Document, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode resume document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode resume document: not an object")
	}
	return Document(doc), nil
}

// Name returns basics.name when present.
func (d Document) Name() string {
	basics, ok := d["basics"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := basics["name"].(string)
	return name
}
