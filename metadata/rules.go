package metadata

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	selBase   = cascadia.MustCompile("base[href]")
	selJSONLD = cascadia.MustCompile(`script[type="application/ld+json"]`)
	selIcons  = cascadia.MustCompile("link[rel][href]")
)

// rule yields a raw candidate value for a field, or "".
type rule func(p *Page) string

type valueKind int

const (
	kindText valueKind = iota
	kindURL
	kindDate
)

// fieldPlugin is a Plugin made of ordered rules. The first rule whose
// normalised value passes accept wins.
type fieldPlugin struct {
	field  string
	kind   valueKind
	rules  []rule
	accept func(string) bool
}

func (f *fieldPlugin) Field() string { return f.field }

func (f *fieldPlugin) Extract(p *Page) string {
	for _, r := range f.rules {
		v := f.normalize(p, r(p))
		if v == "" {
			continue
		}
		if f.accept != nil && !f.accept(v) {
			continue
		}
		return v
	}
	return ""
}

func (f *fieldPlugin) normalize(p *Page, v string) string {
	switch f.kind {
	case kindURL:
		return absoluteURL(p.URL, v)
	case kindDate:
		return normalizeDate(v)
	default:
		return cleanText(v)
	}
}

// meta matches <meta> tags whose name, property or itemprop equals one of
// keys, in key order, and yields the content attribute.
func meta(keys ...string) rule {
	sels := make([]cascadia.Selector, len(keys))
	for i, k := range keys {
		sels[i] = cascadia.MustCompile(
			`meta[name="` + k + `"][content], meta[property="` + k + `"][content], meta[itemprop="` + k + `"][content]`,
		)
	}
	return func(p *Page) string {
		for _, sel := range sels {
			if v := firstAttr(p.Doc, sel, "content"); v != "" {
				return v
			}
		}
		return ""
	}
}

// attr yields attribute name of the first element matching selector.
func attr(selector, name string) rule {
	sel := cascadia.MustCompile(selector)
	return func(p *Page) string {
		return firstAttr(p.Doc, sel, name)
	}
}

// text yields the text of the first element matching selector.
func text(selector string) rule {
	sel := cascadia.MustCompile(selector)
	return func(p *Page) string {
		var out string
		p.Doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = strings.TrimSpace(s.Text())
			return out == ""
		})
		return out
	}
}

// ld yields a JSON-LD value; see ldLookup.
func ld(path ...string) rule {
	return func(p *Page) string {
		return ldLookup(p.JSONLD(), path...)
	}
}

// ldOf is ld restricted to objects of the given @type values.
func ldOf(types []string, path ...string) rule {
	return func(p *Page) string {
		return ldLookup(ldTyped(p.JSONLD(), types...), path...)
	}
}

func firstAttr(doc *goquery.Document, sel cascadia.Selector, name string) string {
	var out string
	doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = strings.TrimSpace(s.AttrOr(name, ""))
		return out == ""
	})
	return out
}
