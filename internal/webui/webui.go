// Package webui embeds the service's static landing page.
package webui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFS embed.FS

// FS returns the embedded static tree rooted at its contents.
func FS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed path is fixed at compile time.
		panic(err)
	}
	return sub
}

// StaticFS returns the embedded static files as an http.FileSystem for
// the service mux.
func StaticFS() http.FileSystem {
	return http.FS(FS())
}
