package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// staticHandler serves the frontend from dir. With spa set, paths that do not
// name a file get index.html so client-side routes survive a reload.
type staticHandler struct {
	dir   string
	files http.Handler
	spa   bool
}

func newStaticHandler(dir string, spa bool) *staticHandler {
	return &staticHandler{dir: dir, files: http.FileServer(http.Dir(dir)), spa: spa}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.spa && r.Method == http.MethodGet && !h.exists(r.URL.Path) {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}
	h.files.ServeHTTP(w, r)
}

func (h *staticHandler) exists(urlPath string) bool {
	name := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+urlPath)))
	_, err := os.Stat(name)
	return err == nil
}
