package metadata

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseJSONLD decodes every application/ld+json block in doc and flattens
// top-level arrays and @graph members into a single list of objects.
// Malformed blocks are skipped.
func parseJSONLD(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.FindMatcher(selJSONLD).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		out = appendLD(out, v)
	})
	return out
}

func appendLD(out []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = appendLD(out, item)
		}
	case map[string]any:
		out = append(out, t)
		if graph, ok := t["@graph"]; ok {
			out = appendLD(out, graph)
		}
	}
	return out
}

// ldLookup walks path through each object and returns the first string
// found. Intermediate arrays use their first element; a terminal object
// yields its "url" or "name" member, whichever names the value.
func ldLookup(items []map[string]any, path ...string) string {
	for _, item := range items {
		if s := ldValue(item, path); s != "" {
			return s
		}
	}
	return ""
}

func ldValue(v any, path []string) string {
	for _, key := range path {
		v = first(v)
		m, ok := v.(map[string]any)
		if !ok {
			return ""
		}
		v = m[key]
	}
	return ldScalar(first(v))
}

func ldScalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, k := range []string{"url", "name", "@id"} {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func first(v any) any {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	}
	return v
}

// ldTyped returns the objects whose @type is one of types.
func ldTyped(items []map[string]any, types ...string) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		for _, t := range ldTypes(item["@type"]) {
			if containsFold(types, t) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func ldTypes(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
