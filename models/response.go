package models

// IconResult holds the metadata extracted from a page. Every field is
// optional; presence depends on what the page declares.
type IconResult struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Date        string `json:"date,omitempty"`
	URL         string `json:"url,omitempty"`
	Image       string `json:"image,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
}

// Usable reports whether the result carries an icon the UI can show.
func (r *IconResult) Usable() bool {
	return r != nil && (r.Favicon != "" || r.Logo != "")
}

// Fields returns the populated fields as a flat map, used for logging.
func (r *IconResult) Fields() map[string]string {
	m := make(map[string]string, 9)
	add := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	add("title", r.Title)
	add("description", r.Description)
	add("author", r.Author)
	add("publisher", r.Publisher)
	add("date", r.Date)
	add("url", r.URL)
	add("image", r.Image)
	add("logo", r.Logo)
	add("favicon", r.Favicon)
	return m
}

// FallbackResult is the degraded-success body returned when the page
// could not be fetched. Logo is always null.
type FallbackResult struct {
	Logo     *string `json:"logo"`
	Favicon  string  `json:"favicon"`
	URL      string  `json:"url"`
	Fallback bool    `json:"fallback"`

	// Error is set when the failure was something other than a timeout.
	Error string `json:"error,omitempty"`
}

// Lookup is the outcome of one favicon lookup. Exactly one of Result
// and Fallback is non-nil.
type Lookup struct {
	Result   *IconResult
	Fallback *FallbackResult

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string

	// EngineUsed names the fetch engine, empty for cache hits.
	EngineUsed string
}

// Body returns the value to serialise as the response body.
func (l *Lookup) Body() any {
	if l.Fallback != nil {
		return l.Fallback
	}
	return l.Result
}

// IconURL returns the best icon to display: favicon, then logo.
func (l *Lookup) IconURL() string {
	if l.Fallback != nil {
		return l.Fallback.Favicon
	}
	if l.Result == nil {
		return ""
	}
	if l.Result.Favicon != "" {
		return l.Result.Favicon
	}
	return l.Result.Logo
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
}
