package staticserve

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sync/atomic"

	"github.com/lumiohq/webpanel-go/internal/server/config"
)

//go:embed webroot
var embeddedAssets embed.FS

// Handler serves files from a swappable document root.
type Handler struct {
	inner atomic.Pointer[http.Handler]
	root  atomic.Pointer[string]
}

// New creates a handler serving the built-in assets.
func New() *Handler {
	h := &Handler{}
	// The embedded tree always exists; ignore the impossible error.
	_ = h.SetDocumentRoot(config.EmbeddedRoot)
	return h
}

// SetDocumentRoot swaps the served directory. The sentinel
// config.EmbeddedRoot selects the built-in assets. A path that is not
// an existing directory is rejected and the previous root stays
// active.
func (h *Handler) SetDocumentRoot(root string) error {
	var inner http.Handler

	if root == config.EmbeddedRoot {
		sub, err := fs.Sub(embeddedAssets, "webroot")
		if err != nil {
			return fmt.Errorf("staticserve: embedded assets: %w", err)
		}
		inner = http.FileServer(noListing{sub: http.FS(sub)})
	} else {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("staticserve: document root %s: %w", root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("staticserve: document root %s is not a directory", root)
		}
		inner = http.FileServer(noListing{sub: http.Dir(root)})
	}

	h.inner.Store(&inner)
	h.root.Store(&root)
	return nil
}

// DocumentRoot returns the active document root.
func (h *Handler) DocumentRoot() string {
	if p := h.root.Load(); p != nil {
		return *p
	}
	return ""
}

// noListing wraps a filesystem so that directories without an
// index.html return not-found instead of a generated listing.
type noListing struct {
	sub http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.sub.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if info.IsDir() {
		index := path.Join(name, "index.html")
		idx, err := n.sub.Open(index)
		if err != nil {
			f.Close()
			return nil, fs.ErrNotExist
		}
		idx.Close()
	}

	return f, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inner := h.inner.Load()
	if inner == nil {
		http.Error(w, "no document root configured", http.StatusServiceUnavailable)
		return
	}
	(*inner).ServeHTTP(w, r)
}
