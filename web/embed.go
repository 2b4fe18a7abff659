// Package web bundles the page templates and browser assets into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS

// Static returns the asset tree rooted at static/, ready for http.FS.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
