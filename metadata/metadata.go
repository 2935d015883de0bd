// Package metadata extracts page-level metadata (title, author, logo,
// favicon, ...) from raw HTML.
//
// A Pipeline holds one Plugin per output field. Each plugin runs an
// ordered list of rules against the parsed Page and keeps the first
// non-empty, normalised value, so well-structured sources (Open Graph,
// JSON-LD) win over heuristics (readability, first <h1>).
package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/favgrab/models"
)

// Field names, as used in the "fields" query parameter and in JSON.
const (
	FieldAuthor      = "author"
	FieldDate        = "date"
	FieldDescription = "description"
	FieldImage       = "image"
	FieldLogo        = "logo"
	FieldPublisher   = "publisher"
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldFavicon     = "favicon"
)

// Extractor turns a page's HTML into an IconResult.
type Extractor interface {
	Extract(ctx context.Context, html, sourceURL string, fields ...string) (*models.IconResult, error)
}

// Plugin produces the value of one field.
type Plugin interface {
	Field() string
	Extract(p *Page) string
}

// Page is the parsed input shared by all plugins of one extraction.
type Page struct {
	// URL is the base for relative links: the page URL or its <base href>.
	URL    *url.URL
	Source *url.URL
	Doc    *goquery.Document
	OG     *opengraph.OpenGraph

	raw string

	ldOnce sync.Once
	ld     []map[string]any

	artOnce sync.Once
	art     readability.Article
}

// NewPage parses html. sourceURL must be absolute; it is the base for
// every relative link on the page.
func NewPage(html, sourceURL string) (*Page, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("metadata: invalid source URL %q", sourceURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("metadata: parse html: %w", err)
	}

	p := &Page{URL: u, Source: u, Doc: doc, raw: html}

	// <base href> changes what relative links resolve against.
	if href, ok := doc.FindMatcher(selBase).First().Attr("href"); ok {
		if b := absoluteURL(u, href); b != "" {
			p.URL, _ = url.Parse(b)
		}
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(html)); err == nil {
		p.OG = og
	}
	return p, nil
}

// JSONLD returns the page's flattened JSON-LD objects, parsed on first use.
func (p *Page) JSONLD() []map[string]any {
	p.ldOnce.Do(func() {
		p.ld = parseJSONLD(p.Doc)
	})
	return p.ld
}

// Article returns the readability view of the page, computed on first use.
// A failed run yields an empty Article.
func (p *Page) Article() readability.Article {
	p.artOnce.Do(func() {
		art, err := readability.FromReader(strings.NewReader(p.raw), p.URL)
		if err == nil {
			p.art = art
		}
	})
	return p.art
}

// Pipeline runs a fixed set of plugins. It is safe for concurrent use.
type Pipeline struct {
	plugins []Plugin
}

// New creates a Pipeline from plugins. Later plugins for the same field
// are ignored.
func New(plugins ...Plugin) *Pipeline {
	seen := make(map[string]struct{}, len(plugins))
	kept := make([]Plugin, 0, len(plugins))
	for _, pl := range plugins {
		if _, dup := seen[pl.Field()]; dup {
			continue
		}
		seen[pl.Field()] = struct{}{}
		kept = append(kept, pl)
	}
	return &Pipeline{plugins: kept}
}

// Default returns a Pipeline with every built-in plugin.
func Default() *Pipeline {
	return New(
		Author(),
		Date(),
		Description(),
		Image(),
		Logo(),
		Publisher(),
		Title(),
		URL(),
		Favicon(),
	)
}

// Fields lists the fields this pipeline can produce.
func (pl *Pipeline) Fields() []string {
	out := make([]string, len(pl.plugins))
	for i, p := range pl.plugins {
		out[i] = p.Field()
	}
	return out
}

// Extract runs the plugins named in fields (all of them when fields is
// empty) and returns the populated result. Unknown field names are ignored.
func (pl *Pipeline) Extract(ctx context.Context, html, sourceURL string, fields ...string) (*models.IconResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := NewPage(html, sourceURL)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		want[f] = struct{}{}
	}

	res := &models.IconResult{}
	for _, p := range pl.plugins {
		if len(want) > 0 {
			if _, ok := want[p.Field()]; !ok {
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set(res, p.Field(), p.Extract(page))
	}
	return res, nil
}

func set(r *models.IconResult, field, v string) {
	switch field {
	case FieldAuthor:
		r.Author = v
	case FieldDate:
		r.Date = v
	case FieldDescription:
		r.Description = v
	case FieldImage:
		r.Image = v
	case FieldLogo:
		r.Logo = v
	case FieldPublisher:
		r.Publisher = v
	case FieldTitle:
		r.Title = v
	case FieldURL:
		r.URL = v
	case FieldFavicon:
		r.Favicon = v
	}
}
