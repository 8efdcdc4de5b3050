// Package web embeds the static pages served next to the API: the audience
// join page, the presenter view and the creation form.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static
var assets embed.FS

// Mount attaches the static pages to the router.
func Mount(r chi.Router) {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		// The subtree is embedded at build time; failing here means the
		// binary itself is broken.
		panic(err)
	}

	fileServer := http.FileServer(http.FS(static))

	r.Get("/", servePage(static, "join.html"))
	r.Get("/present", servePage(static, "present.html"))
	r.Get("/new", servePage(static, "new.html"))
	r.Get("/favicon.svg", serveIcon(static))
	// Alias for clients that request the conventional name.
	r.Get("/favicon.ico", serveIcon(static))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
}

func serveIcon(static fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := fs.ReadFile(static, "favicon.svg")
		if err != nil {
			http.Error(w, "icon not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(data)
	}
}

func servePage(static fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := fs.ReadFile(static, name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}
}
