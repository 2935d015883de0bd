package metadata

import "unicode/utf8"

var _ Extractor = (*Pipeline)(nil)

var (
	articleTypes      = []string{"Article", "NewsArticle", "BlogPosting", "WebPage", "Report", "TechArticle"}
	organizationTypes = []string{"Organization", "Corporation", "NewsMediaOrganization", "LocalBusiness", "WebSite"}
)

// Title prefers social titles over the document <title>.
func Title() Plugin {
	return &fieldPlugin{
		field: FieldTitle,
		kind:  kindText,
		rules: []rule{
			func(p *Page) string { return ogString(p, func(p *Page) string { return p.OG.Title }) },
			meta("twitter:title"),
			ld("headline"),
			text("head > title"),
			text("title"),
			func(p *Page) string { return p.Article().Title },
			text("h1"),
		},
	}
}

// Description reads social and standard description tags, then the
// readability excerpt.
func Description() Plugin {
	return &fieldPlugin{
		field: FieldDescription,
		kind:  kindText,
		rules: []rule{
			func(p *Page) string { return ogString(p, func(p *Page) string { return p.OG.Description }) },
			meta("twitter:description"),
			meta("description"),
			text(`[itemprop="description"]`),
			ld("description"),
			func(p *Page) string { return p.Article().Excerpt },
		},
	}
}

// Author rejects values that are links (profile URLs are common in
// article:author) and absurdly long bylines.
func Author() Plugin {
	return &fieldPlugin{
		field: FieldAuthor,
		kind:  kindText,
		rules: []rule{
			ldOf(articleTypes, "author", "name"),
			ld("author", "name"),
			ld("author"),
			meta("author", "article:author", "byl", "parsely-author", "sailthru.author"),
			text(`[itemprop="author"] [itemprop="name"]`),
			text(`[itemprop="author"]`),
			text(`a[rel="author"]`),
			text(".byline .author, .byline, .author-name"),
			func(p *Page) string { return p.Article().Byline },
		},
		accept: func(v string) bool {
			return !looksLikeURL(v) && utf8.RuneCountInString(v) <= 120
		},
	}
}

// Date is the publication date, falling back to modification dates.
func Date() Plugin {
	return &fieldPlugin{
		field: FieldDate,
		kind:  kindDate,
		rules: []rule{
			meta("article:published_time", "datePublished", "date", "dc.date", "DC.date.issued", "pubdate", "publish-date"),
			attr(`time[itemprop="datePublished"][datetime]`, "datetime"),
			ld("datePublished"),
			ld("dateCreated"),
			meta("article:modified_time", "og:updated_time", "dateModified", "last-modified"),
			ld("dateModified"),
			attr("article time[datetime]", "datetime"),
			attr("time[datetime]", "datetime"),
		},
	}
}

// Image is the page's preview image.
func Image() Plugin {
	return &fieldPlugin{
		field: FieldImage,
		kind:  kindURL,
		rules: []rule{
			ogImage,
			meta("twitter:image", "twitter:image:src"),
			meta("image"),
			ld("image", "url"),
			ld("image"),
			ld("thumbnailUrl"),
			attr(`link[rel="image_src"]`, "href"),
			attr("article img[src]", "src"),
		},
	}
}

// Logo is the publisher's logo as declared by the page.
func Logo() Plugin {
	return &fieldPlugin{
		field: FieldLogo,
		kind:  kindURL,
		rules: []rule{
			meta("og:logo", "logo"),
			attr(`img[itemprop="logo"][src]`, "src"),
			attr(`link[itemprop="logo"][href]`, "href"),
			ld("publisher", "logo", "url"),
			ld("publisher", "logo"),
			ldOf(organizationTypes, "logo", "url"),
			ldOf(organizationTypes, "logo"),
			ld("brand", "logo"),
		},
	}
}

// Publisher is the site or organisation name.
func Publisher() Plugin {
	return &fieldPlugin{
		field: FieldPublisher,
		kind:  kindText,
		rules: []rule{
			func(p *Page) string { return ogString(p, func(p *Page) string { return p.OG.SiteName }) },
			ld("publisher", "name"),
			ldOf(organizationTypes, "name"),
			meta("application-name", "apple-mobile-web-app-title", "twitter:app:name:iphone"),
			func(p *Page) string { return p.Article().SiteName },
		},
		accept: func(v string) bool { return !looksLikeURL(v) },
	}
}

// URL is the canonical URL, defaulting to the page URL.
func URL() Plugin {
	return &fieldPlugin{
		field: FieldURL,
		kind:  kindURL,
		rules: []rule{
			func(p *Page) string { return ogString(p, func(p *Page) string { return p.OG.URL }) },
			attr(`link[rel="canonical"][href]`, "href"),
			meta("twitter:url"),
			func(p *Page) string { return p.Source.String() },
		},
	}
}

func ogString(p *Page, get func(*Page) string) string {
	if p.OG == nil {
		return ""
	}
	return get(p)
}

func ogImage(p *Page) string {
	if p.OG == nil {
		return ""
	}
	for _, img := range p.OG.Images {
		if img == nil {
			continue
		}
		if img.SecureURL != "" {
			return img.SecureURL
		}
		if img.URL != "" {
			return img.URL
		}
	}
	return ""
}
