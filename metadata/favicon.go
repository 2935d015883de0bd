package metadata

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/favgrab/iconurl"
)

// IconCandidate is one <link rel> icon declared by a page.
type IconCandidate struct {
	Rel  string
	Href string // absolute
	Type string
	Size int // largest declared edge in px, 0 when unknown
}

// assumed edge lengths when a link declares no sizes.
var relDefaultSize = map[string]int{
	"apple-touch-icon":             180,
	"apple-touch-icon-precomposed": 180,
	"mask-icon":                    0,
	"icon":                         0,
	"shortcut icon":                0,
	"fluid-icon":                   0,
}

// IconCandidates returns every icon link on the page in document order.
func IconCandidates(p *Page) []IconCandidate {
	var out []IconCandidate
	seen := make(map[string]struct{})
	p.Doc.FindMatcher(selIcons).Each(func(_ int, s *goquery.Selection) {
		rel := iconRel(s.AttrOr("rel", ""))
		if rel == "" {
			return
		}
		href := absoluteURL(p.URL, s.AttrOr("href", ""))
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		size := parseSizes(s.AttrOr("sizes", ""))
		if size == 0 {
			size = relDefaultSize[rel]
		}
		out = append(out, IconCandidate{
			Rel:  rel,
			Href: href,
			Type: strings.TrimSpace(s.AttrOr("type", "")),
			Size: size,
		})
	})
	return out
}

// iconRel maps a rel attribute to a known icon relation, or "".
func iconRel(rel string) string {
	rel = strings.Join(strings.Fields(strings.ToLower(rel)), " ")
	if _, ok := relDefaultSize[rel]; ok {
		return rel
	}
	for _, tok := range strings.Fields(rel) {
		if tok == "icon" {
			return "icon"
		}
	}
	return ""
}

// parseSizes returns the largest edge in a sizes attribute such as
// "16x16 32x32". "any" counts as a scalable icon.
func parseSizes(sizes string) int {
	best := 0
	for _, tok := range strings.Fields(strings.ToLower(sizes)) {
		if tok == "any" {
			if best < 512 {
				best = 512
			}
			continue
		}
		w, h, ok := strings.Cut(tok, "x")
		if !ok {
			continue
		}
		wi, err1 := strconv.Atoi(w)
		hi, err2 := strconv.Atoi(h)
		if err1 != nil || err2 != nil {
			continue
		}
		if wi > best {
			best = wi
		}
		if hi > best {
			best = hi
		}
	}
	return best
}

// BestIcon picks the largest sized candidate. mask-icon only wins when it
// is the sole candidate; it is a monochrome template.
func BestIcon(cands []IconCandidate) (IconCandidate, bool) {
	var best IconCandidate
	found := false
	for _, c := range cands {
		if c.Rel == "mask-icon" {
			continue
		}
		if !found || c.Size > best.Size {
			best = c
			found = true
		}
	}
	if !found && len(cands) > 0 {
		return cands[0], true
	}
	return best, found
}

// Favicon picks the best declared icon, falling back to /favicon.ico at
// the page origin.
func Favicon() Plugin {
	return &fieldPlugin{
		field: FieldFavicon,
		kind:  kindURL,
		rules: []rule{
			func(p *Page) string {
				if c, ok := BestIcon(IconCandidates(p)); ok {
					return c.Href
				}
				return ""
			},
			func(p *Page) string {
				fb, _ := iconurl.Fallback(p.Source)
				return fb
			},
		},
	}
}
