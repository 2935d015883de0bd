// Package web embeds the favicon finder page: its HTML template and the
// static assets it loads.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed all:static
var staticFS embed.FS

// Templates parses the page templates.
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

// StaticFS returns a fs.FS rooted at static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// AppIcon returns the application's own SVG icon.
func AppIcon() []byte {
	b, err := fs.ReadFile(staticFS, "static/favicon.svg")
	if err != nil {
		panic(err)
	}
	return b
}
